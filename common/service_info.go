package common

import "os"

func GetServiceName() string {
	name := os.Getenv("SERVICE_NAME")
	if name == "" {
		return "conveyor"
	}
	return name
}

func GetServiceInstance() string {
	instance := os.Getenv("HOSTNAME")
	if instance == "" {
		instance, _ = os.Hostname()
	}
	return instance
}
