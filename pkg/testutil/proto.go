package testutil

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ProtoEqual returns nil when the messages are equal, and an error showing
// both as JSON otherwise
func ProtoEqual(expected, actual proto.Message) error {
	if proto.Equal(expected, actual) {
		return nil
	}

	expectedJSON, _ := protojson.Marshal(expected)
	actualJSON, _ := protojson.Marshal(actual)
	return errors.Errorf("expected: %s\nactual:   %s", expectedJSON, actualJSON)
}
