package fakes

import "github.com/dhima/webhook-scheduler/internal/models"

// FakeCatalog serves a fixed trigger-definition map.
type FakeCatalog struct {
	Triggers map[string]models.CronTriggerDefinition
}

func NewFakeCatalog(defs ...models.CronTriggerDefinition) *FakeCatalog {
	triggers := make(map[string]models.CronTriggerDefinition, len(defs))
	for _, d := range defs {
		triggers[d.Name] = d
	}
	return &FakeCatalog{Triggers: triggers}
}

func (f *FakeCatalog) Snapshot() map[string]models.CronTriggerDefinition {
	out := make(map[string]models.CronTriggerDefinition, len(f.Triggers))
	for name, def := range f.Triggers {
		out[name] = def
	}
	return out
}
