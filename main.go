package main

import "FrameAnnotator/cmd"

func main() {
	cmd.Execute()
}
