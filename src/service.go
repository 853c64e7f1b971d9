package main

import (
	"context"
	"errors"
)

// Failure taxonomy shared by the producer pipeline.
var (
	ErrInvalidURL        = errors.New("invalid album art url")
	ErrTransport         = errors.New("transport error")
	ErrOversizedPayload  = errors.New("oversized payload")
	ErrCorruptPayload    = errors.New("corrupt payload")
	ErrDecodeFailure     = errors.New("decode failure")
	ErrAllocationFailure = errors.New("allocation failure")
	ErrGuardContention   = errors.New("guard contention")
	ErrVolumeRead        = errors.New("volume read failure")
)

// ArtURLUnavailable is what the metadata API returns when there is no art.
const ArtURLUnavailable = "Something went wrong"

// FieldFilter selects which parts of the playback state a request asks for.
type FieldFilter uint8

const (
	FieldProgress FieldFilter = 1 << iota
	FieldDuration
	FieldPlaying
	FieldTrack
	FieldArtist
	FieldDevice
	FieldVolume

	FieldsNowPlaying = FieldProgress | FieldDuration | FieldPlaying | FieldTrack | FieldArtist | FieldDevice
)

func (f FieldFilter) Has(field FieldFilter) bool {
	return f&field != 0
}

// PlaybackState is one reply from the remote service. Missing fields are zero.
type PlaybackState struct {
	StatusCode    int
	ProgressMs    uint32
	DurationMs    uint32
	IsPlaying     bool
	TrackName     string
	ArtistName    string
	DeviceName    string
	VolumePercent int
	HasVolume     bool
}

// PlaybackService is the remote playback collaborator polled by the producer.
type PlaybackService interface {
	PlaybackState(ctx context.Context, fields FieldFilter) (PlaybackState, error)
	AlbumArtURL(ctx context.Context, sizeIndex int) string
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SkipNext(ctx context.Context) error
	SkipPrevious(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error
	CurrentVolume(ctx context.Context) (int, error)
}

// readVolume reads the device volume fresh; it is never cached.
// Returns -1 and ErrVolumeRead when the service cannot report it.
func readVolume(ctx context.Context, svc PlaybackService) (int, error) {
	st, err := svc.PlaybackState(ctx, FieldVolume)
	if err != nil {
		return -1, errors.Join(ErrVolumeRead, err)
	}
	if !st.HasVolume || st.VolumePercent < 0 {
		return -1, ErrVolumeRead
	}
	return st.VolumePercent, nil
}
