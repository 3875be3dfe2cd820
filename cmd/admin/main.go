package main

import "github.com/guimashan/staff-schedule/cmd/admin/command"

func main() {
	command.Execute()
}
