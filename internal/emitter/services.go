package emitter

import (
	"eolos-node/internal/gatt"
)

// AddService registers s with the radio. It reports false, and logs why,
// when the radio refuses it.
func (e *Emitter) AddService(s *gatt.Service) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.powered {
		e.logger.Warn("emitter: service not added", "service", s.Name, "error", ErrNotPoweredOn)
		return false
	}
	if err := e.radio.AddService(s); err != nil {
		e.logger.Warn("emitter: service not added", "service", s.Name, "error", err)
		return false
	}
	e.logger.Info("emitter: service added", "service", s.Name, "uuid", s.UUID, "characteristics", len(s.Characteristics()))
	return true
}

// AddServiceWithCharacteristics attaches cs to s in order and registers s.
func (e *Emitter) AddServiceWithCharacteristics(s *gatt.Service, cs ...*gatt.Characteristic) bool {
	if err := s.Attach(cs...); err != nil {
		e.logger.Warn("emitter: characteristics not attached", "service", s.Name, "error", err)
		return false
	}
	return e.AddService(s)
}

// RegisterAndActivate attaches cs, registers s and activates it according to
// the emitter's ActivationPolicy. The result is the registration result.
func (e *Emitter) RegisterAndActivate(s *gatt.Service, cs []*gatt.Characteristic) bool {
	ok := e.AddServiceWithCharacteristics(s, cs...)
	if ok || e.policy == ActivateAlways {
		s.Activate()
	}
	if !ok && e.policy == ActivateAlways {
		e.logger.Warn("emitter: service activated without registration", "service", s.Name)
	}
	return ok
}

func (e *Emitter) AddServiceWithCharacteristicsAndActivate(s *gatt.Service, cs ...*gatt.Characteristic) bool {
	return e.RegisterAndActivate(s, cs)
}
