/*
gridlearn trains a tabular Q-learning agent in a grid world: a walled maze with a goal, or a
snake arena with food, hazards and a scripted opponent. `gridlearn train` runs headless;
`gridlearn serve` trains at a fixed tick rate and streams every tick to a websocket client.
*/
package main

import (
	"fmt"
	"os"

	"gridlearn/cmd"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
