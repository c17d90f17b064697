package mqtt

import "errors"

var (
	// ErrNotConnected means there is no broker session; the bridge treats it
	// as "try again after the next successful connect".
	ErrNotConnected = errors.New("mqtt: no broker session")

	ErrConnectionFailed = errors.New("mqtt: connect attempt failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS rejects anything above at-most-once.
	ErrInvalidQoS = errors.New("mqtt: only QoS 0 is used by the bridge")

	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
