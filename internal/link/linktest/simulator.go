package linktest

import (
	"sync"

	"github.com/muurk/mowerble/internal/command"
	"github.com/muurk/mowerble/internal/protocol"
	"github.com/muurk/mowerble/internal/schema"
)

// Call is one request seen by a Simulator
type Call struct {
	Name   schema.Name
	Fields command.Fields
}

// Simulator answers requests by command name using a schema registry,
// the way a mower would.
type Simulator struct {
	registry *schema.Registry
	byID     map[protocol.CommandID]*schema.Entry

	mu        sync.Mutex
	responses map[schema.Name]command.Fields
	status    map[schema.Name]byte
	silent    map[schema.Name]bool
	pin       *uint16
	calls     []Call
}

// NewSimulator creates a simulator for reg. A nil reg uses schema.Default.
func NewSimulator(reg *schema.Registry) *Simulator {
	if reg == nil {
		reg = schema.Default()
	}
	s := &Simulator{
		registry:  reg,
		byID:      make(map[protocol.CommandID]*schema.Entry),
		responses: make(map[schema.Name]command.Fields),
		status:    make(map[schema.Name]byte),
		silent:    make(map[schema.Name]bool),
	}
	for _, name := range reg.Names() {
		entry, _ := reg.Get(name)
		s.byID[entry.ID] = entry
	}
	return s
}

// Set configures the response fields for a command
func (s *Simulator) Set(name schema.Name, fields command.Fields) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[name] = fields
	return s
}

// Status makes a command answer with a non-zero status byte, which fails
// response validation
func (s *Simulator) Status(name schema.Name, status byte) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[name] = status
	return s
}

// Silence stops the simulator from answering a command
func (s *Simulator) Silence(name schema.Name, silent bool) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent[name] = silent
	return s
}

// RequirePIN makes EnterOperatorPin fail for any other code
func (s *Simulator) RequirePIN(pin uint16) *Simulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pin = &pin
	return s
}

// Calls returns the requests seen so far, in order
func (s *Simulator) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Names returns the command names seen so far, in order
func (s *Simulator) Names() []schema.Name {
	calls := s.Calls()
	names := make([]schema.Name, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	return names
}

// Handle is a Handler
func (s *Simulator) Handle(p *Peripheral, req *protocol.Frame) {
	entry, ok := s.byID[req.Command]
	if !ok {
		return
	}
	cmd := command.New(req.Channel, entry)

	fields, err := cmd.DecodeRequest(req.Payload)
	if err != nil {
		p.Reply(req, []byte{0xFF})
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Name: entry.Name, Fields: fields})
	silent := s.silent[entry.Name]
	status, hasStatus := s.status[entry.Name]
	response := s.responses[entry.Name]
	if entry.Name == schema.EnterOperatorPin && s.pin != nil {
		if code, _ := fields.Uint("code"); uint16(code) != *s.pin {
			status, hasStatus = 0x01, true
		}
	}
	s.mu.Unlock()

	if silent {
		return
	}

	if response == nil {
		response = zeroFields(entry)
	}
	payload, err := cmd.EncodeResponse(response)
	if err != nil {
		p.Reply(req, []byte{0xFF})
		return
	}
	if hasStatus && len(payload) > 0 {
		payload[0] = status
	}
	p.Reply(req, payload)
}

func zeroFields(entry *schema.Entry) command.Fields {
	fields := make(command.Fields, len(entry.Response))
	for _, f := range entry.Response {
		switch {
		case f.Type == schema.TypeBool:
			fields[f.Name] = false
		case f.Type.IsString():
			fields[f.Name] = ""
		case f.Type == schema.TypeWeekdays:
			fields[f.Name] = command.Weekdays{}
		default:
			fields[f.Name] = 0
		}
	}
	return fields
}
