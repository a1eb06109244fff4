package main

import (
	"insight-service/app"
	"insight-service/pkg/observability"
)

func main() {
	observability.StartProfiling("insight-service")
	app.Run()
}
