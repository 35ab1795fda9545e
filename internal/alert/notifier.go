package alert

import (
	"errors"

	"sentinel-guard/internal/model"
)

// Notifier interface for alert notification
type Notifier interface {
	SendAlert(alert model.Alert) error
}

// MultiNotifier fans one alert out to several notifiers and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) SendAlert(alert model.Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.SendAlert(alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
