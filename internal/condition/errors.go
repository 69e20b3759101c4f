package condition

import "fmt"

func channelUnassignedError(ch int) error {
	return fmt.Errorf("condition: channel %d used in a term but not assigned to a stream channel", ch)
}

func channelRangeError(ch int) error {
	return fmt.Errorf("condition: channel %d out of range for pin vector", ch)
}
