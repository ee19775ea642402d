package main

import "github.com/charmbracelet/x/ansi"

func ansiFree(s string) string {
	return ansi.Strip(s)
}
