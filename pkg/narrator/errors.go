package narrator

import (
	"errors"

	"vibewalk/pkg/audio"
)

var (
	// ErrGeolocationUnavailable is returned when there is no location fix.
	ErrGeolocationUnavailable = errors.New("location unavailable")
	// ErrTextGeneration is returned when the text service fails or refuses.
	ErrTextGeneration = errors.New("narrative connection interrupted")
	// ErrSpeechSynthesis is returned when the speech service yields no audio.
	ErrSpeechSynthesis = errors.New("voice synthesis failed")
	// ErrDecode is returned when the synthesized audio cannot be decoded.
	ErrDecode = audio.ErrDecode
	// ErrAudioSystem is returned when playback cannot start.
	ErrAudioSystem = audio.ErrAudioSystem
	// ErrPipelineBusy is returned by Generate while a cycle is in flight.
	ErrPipelineBusy = errors.New("generation already in progress")
	// ErrSuperseded is returned to the caller of a cycle that was abandoned
	// by a newer one. Shared state is left to the newer cycle.
	ErrSuperseded = errors.New("generation superseded")
)
