package lines

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type seq struct{ i int }

func (s *seq) Intn(n int) int {
	v := s.i % n
	s.i++
	return v
}

func TestPick(t *testing.T) {
	p := &seq{}
	set := []string{"a", "b", "c"}

	assert.Equal(t, "a", Pick(p, set))
	assert.Equal(t, "b", Pick(p, set))
	assert.Equal(t, "c", Pick(p, set))
	assert.Equal(t, "a", Pick(p, set))
	assert.Equal(t, "", Pick(p, nil))
}

func TestNewPicker_InRange(t *testing.T) {
	p := NewPicker()
	for i := 0; i < 100; i++ {
		v := p.Intn(3)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 3)
	}
}

func TestPersonaLines(t *testing.T) {
	p := Persona{Name: "Jarvis", Creator: "Tony"}

	assert.Equal(t, "Good day, sir. JARVIS is now online and ready to assist you.", Greeting(p))
	assert.Equal(t, "I am an AI Assistant created by Tony, sir.", Creator(p))
	assert.Contains(t, PracticePersona(p), "English teacher")
	assert.Contains(t, DefaultPersona(p), "created by Tony")
}

func TestSwitchUnsupported(t *testing.T) {
	assert.Equal(t,
		"I would turn on Bluetooth for you, sir, but I need device permissions. Please enable Bluetooth manually in your settings.",
		SwitchUnsupported("Bluetooth", true))
	assert.Equal(t,
		"I would turn off WiFi for you, sir, but I need device permissions. Please disable WiFi manually in your settings.",
		SwitchUnsupported("WiFi", false))
}
