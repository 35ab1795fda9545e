package rules

import (
	"context"
	"sync"

	"sentinel-guard/internal/model"

	"github.com/sirupsen/logrus"
)

type Engine struct {
	rules          []RuleInterface
	alertNotifiers []NotifierInterface
	alertHooks     []func(model.Alert)
	logger         *logrus.Logger
	mu             sync.RWMutex
	alertChannel   chan model.Alert
}

type NotifierInterface interface {
	SendAlert(alert model.Alert) error
}

func NewEngine(logger *logrus.Logger) *Engine {
	return &Engine{
		rules:          make([]RuleInterface, 0),
		alertNotifiers: make([]NotifierInterface, 0),
		logger:         logger,
		alertChannel:   make(chan model.Alert, 100),
	}
}

func (e *Engine) RegisterRule(rule RuleInterface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	e.logger.Infof("Registered rule: %s", rule.Name())
}

func (e *Engine) RegisterNotifier(notifier NotifierInterface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alertNotifiers = append(e.alertNotifiers, notifier)
}

// OnAlert registers a hook called synchronously for every emitted alert.
func (e *Engine) OnAlert(hook func(model.Alert)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alertHooks = append(e.alertHooks, hook)
}

func (e *Engine) Rules() []RuleInterface {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rules := make([]RuleInterface, len(e.rules))
	copy(rules, e.rules)
	return rules
}

func (e *Engine) Evaluate(ctx context.Context, event *model.ThreatEvent) []model.Alert {
	var alerts []model.Alert

	for _, rule := range e.Rules() {
		if rule.IsEnabled() {
			if alert := rule.Evaluate(ctx, event); alert != nil {
				alerts = append(alerts, *alert)
				e.EmitAlert(*alert)
			}
		}
	}

	return alerts
}

// StartPeriodic launches every enabled rule that runs on its own schedule.
// The goroutines stop when ctx is done.
func (e *Engine) StartPeriodic(ctx context.Context) {
	for _, rule := range e.Rules() {
		if p, ok := rule.(PeriodicRule); ok && rule.IsEnabled() {
			p.SetAlertEmitter(func(alert *model.Alert) {
				e.EmitAlert(*alert)
			})
			go p.Start(ctx)
		}
	}
}

func (e *Engine) EmitAlert(alert model.Alert) {
	select {
	case e.alertChannel <- alert:
	default:
		e.logger.Error("Alert channel is full, dropping alert")
	}

	e.mu.RLock()
	notifiers := make([]NotifierInterface, len(e.alertNotifiers))
	copy(notifiers, e.alertNotifiers)
	hooks := make([]func(model.Alert), len(e.alertHooks))
	copy(hooks, e.alertHooks)
	e.mu.RUnlock()

	for _, hook := range hooks {
		hook(alert)
	}

	for _, notifier := range notifiers {
		if err := notifier.SendAlert(alert); err != nil {
			e.logger.Errorf("Failed to send alert: %v", err)
		}
	}
}

func (e *Engine) GetAlertChannel() <-chan model.Alert {
	return e.alertChannel
}

type RuleInterface interface {
	Name() string
	IsEnabled() bool
	Evaluate(ctx context.Context, event *model.ThreatEvent) *model.Alert
}

// PeriodicRule is a rule that checks an external source on a timer instead
// of reacting to individual events.
type PeriodicRule interface {
	RuleInterface
	SetAlertEmitter(func(*model.Alert))
	Start(ctx context.Context)
}
