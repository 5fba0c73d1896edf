package main

import (
	"os"
)

// @title        Touch Thermostat API
// @version      1.0
// @description  HTTP host for a Rinnai Touch WiFi controller: state, commands, audit log.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the JWT.
func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
