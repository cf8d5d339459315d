/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/smartkids/tutoring-api/cmd"

func main() {
	cmd.Execute()
}
