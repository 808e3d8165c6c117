//go:build darwin

package eventcatcher

import (
	"github.com/prashantgupta24/mac-sleep-notifier/notifier"
)

func sleeper(listen chan bool) {
	activities := notifier.GetInstance().Start()
	go func() {
		for activity := range activities {
			if activity.Type == notifier.Sleep {
				listen <- true
				return
			}
		}
	}()
}
