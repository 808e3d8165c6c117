//go:build !darwin

package eventcatcher

// sleep notifications are only available on darwin
func sleeper(listen chan bool) {}
