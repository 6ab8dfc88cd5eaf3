// Package main is the entry point for the Sentinel assistant service.
//
// The service answers questions grounded on a folder of knowledge documents:
// the best matching document is selected by embedding similarity and handed
// to a chat model as the only context it may use.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/sentinel-assistant/cmd/assistant/app"
)

func main() {
	app.NewApp().Run()
}
