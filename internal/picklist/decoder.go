package picklist

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// Table maps each controller value to the dependent values valid for it.
type Table struct {
	Controller string
	Dependent  string
	valid      map[string][]string
	// Skipped holds the dependent values whose bitmap could not be decoded.
	Skipped []SkippedValue
}

type SkippedValue struct {
	Value  string
	Reason string
}

// ValidFor returns the sorted dependent values valid for controllerValue.
func (t *Table) ValidFor(controllerValue string) []string {
	if t == nil {
		return nil
	}
	return t.valid[controllerValue]
}

// ControllersFor returns, in controller order, the controller values for
// which dependentValue is valid.
func (t *Table) ControllersFor(dependentValue string, controllerValues []string) []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, cv := range controllerValues {
		for _, dv := range t.valid[cv] {
			if dv == dependentValue {
				out = append(out, cv)
				break
			}
		}
	}
	return out
}

// Pairs counts the valid (controller, dependent) combinations.
func (t *Table) Pairs() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, values := range t.valid {
		n += len(values)
	}
	return n
}

// ControllerValues returns the positional controller values the bitmap bits
// refer to. Boolean controllers use position 0 for false and 1 for true.
func ControllerValues(controller *types.FieldDescriptor) []string {
	if controller.Type == types.FieldBoolean {
		return []string{"false", "true"}
	}
	return controller.ActiveValues()
}

// Decode inverts the validFor bitmaps of dependent into a controller-keyed table.
// Bit i (MSB-first within each byte) set means the value is valid when the
// controller's i-th active value is selected. Undecodable entries are skipped.
func Decode(controller, dependent *types.FieldDescriptor) *Table {
	controllerValues := ControllerValues(controller)
	table := &Table{
		Controller: controller.Name,
		Dependent:  dependent.Name,
		valid:      make(map[string][]string, len(controllerValues)),
	}

	for _, pv := range dependent.PicklistValues {
		if !pv.Active {
			continue
		}
		positions, err := decodeBitmap(pv.ValidFor)
		if err != nil {
			table.Skipped = append(table.Skipped, SkippedValue{Value: pv.Value, Reason: err.Error()})
			continue
		}
		for _, pos := range positions {
			if pos >= len(controllerValues) {
				break
			}
			cv := controllerValues[pos]
			table.valid[cv] = append(table.valid[cv], pv.Value)
		}
	}

	for cv := range table.valid {
		sort.Strings(table.valid[cv])
	}
	return table
}

func decodeBitmap(validFor string) ([]int, error) {
	if validFor == "" {
		return nil, fmt.Errorf("missing validFor bitmap")
	}
	raw, err := base64.StdEncoding.DecodeString(validFor)
	if err != nil {
		return nil, fmt.Errorf("malformed validFor bitmap: %w", err)
	}

	var positions []int
	for i, b := range raw {
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>bit) != 0 {
				positions = append(positions, i*8+bit)
			}
		}
	}
	return positions, nil
}

// EncodeBitmap builds a validFor bitmap for the given controller positions.
// It is the inverse of the decoder and is used by fixtures and the sandbox.
func EncodeBitmap(positions ...int) string {
	highest := -1
	for _, p := range positions {
		if p > highest {
			highest = p
		}
	}
	if highest < 0 {
		return base64.StdEncoding.EncodeToString([]byte{0})
	}
	raw := make([]byte, highest/8+1)
	for _, p := range positions {
		if p >= 0 {
			raw[p/8] |= 0x80 >> (p % 8)
		}
	}
	return base64.StdEncoding.EncodeToString(raw)
}
