package hl7

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labResult = "MSH|^~\\&|LIS|MAIN|EHR|MAIN|20240301091500||ORU^R01|CTRL42|P|2.5.1\r" +
	"PID|1||MRN777^^^HOSP~ALT9^^^EXT||Rivera^Ana^M||19750412|F\r" +
	"PV1|1|I|4W^412^B\r" +
	"OBR|1|ORD9||2345-7^Glucose^LN\r" +
	"OBX|1|NM|2345-7^Glucose^LN||245|mg/dL|70-99|H|||F\r" +
	"OBX|2|NM|2160-0^Creatinine^LN||0.9|mg/dL|0.6-1.2|N|||F"

func TestParseHeader(t *testing.T) {
	msg, err := Parse(labResult)
	require.NoError(t, err)

	assert.Equal(t, "ORU^R01", msg.Type)
	assert.Equal(t, "CTRL42", msg.ControlID)
	assert.Equal(t, "2.5.1", msg.Version)
	assert.Equal(t, "LIS", msg.SendingApp)
	assert.Equal(t, 2024, msg.Timestamp.Year())
	assert.Len(t, msg.Segments, 6)
}

func TestParseComponentsAndRepeats(t *testing.T) {
	msg, err := Parse(labResult)
	require.NoError(t, err)

	pid := msg.Segment("PID")
	require.NotNil(t, pid)
	assert.Equal(t, "MRN777", pid.Component(3, 1))
	assert.Len(t, pid.Fields[2].Repeats, 2)
	assert.Equal(t, "ALT9", pid.Fields[2].Repeats[1][0])
	assert.Equal(t, "Rivera", pid.Component(5, 1))
	assert.Equal(t, "F", pid.Get(8))

	obx := msg.All("OBX")
	require.Len(t, obx, 2)
	assert.Equal(t, "H", obx[0].Get(8))
	assert.Equal(t, "Creatinine", obx[1].Component(3, 2))
}

func TestParseNewlineSeparated(t *testing.T) {
	msg, err := Parse("MSH|^~\\&|A|B|C|D|20240101||ADT^A01|1|P|2.3\nPID|1||X1\n\n")
	require.NoError(t, err)
	assert.Len(t, msg.Segments, 2)
}

func TestLookup(t *testing.T) {
	msg, err := Parse(labResult)
	require.NoError(t, err)

	v, ok := msg.Lookup("PV1-3")
	assert.True(t, ok)
	assert.Equal(t, "4W^412^B", v)

	v, ok = msg.Lookup("MSH-9.2")
	assert.True(t, ok)
	assert.Equal(t, "R01", v)

	_, ok = msg.Lookup("ZZZ-1")
	assert.False(t, ok)
	_, ok = msg.Lookup("bad")
	assert.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", "  \r\n "},
		{"no msh", "PID|1||X"},
		{"no type", "MSH|^~\\&|A|B|C|D|20240101|||1|P|2.3"},
		{"bad segment", "MSH|^~\\&|A|B|C|D|20240101||ADT^A01|1|P|2.3\rpi|x"},
		{"plain text", "hello world this is not hl7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestParseRef(t *testing.T) {
	name, field, comp, err := ParseRef("OBX-3.1")
	require.NoError(t, err)
	assert.Equal(t, "OBX", name)
	assert.Equal(t, 3, field)
	assert.Equal(t, 1, comp)

	_, _, _, err = ParseRef("OBX-x")
	assert.Error(t, err)
}
