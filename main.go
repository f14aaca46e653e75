/*
Copyright © 2025 Marlene Gram (mgram@posteo.net)
*/
package main

import "github.com/mgram/wwtp-microbiome/cmd"

func main() {
	cmd.Execute()
}
