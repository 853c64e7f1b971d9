package main

// TrackUpdate is what one poll cycle publishes. Empty strings and a nil
// sample leave the corresponding field untouched.
type TrackUpdate struct {
	Artist string
	Title  string
	Device string
	Sample *PlaybackSample
}

// Pending is the result of a drain. Nil means unchanged since the last drain.
type Pending struct {
	Artist *string
	Title  *string
	Device *string
	Sample *PlaybackSample
	Art    *ImageDescriptor
}

func (p Pending) Empty() bool {
	return p.Artist == nil && p.Title == nil && p.Device == nil && p.Art == nil
}

// ChannelSnapshot is a consistent copy of the channel for diagnostics.
type ChannelSnapshot struct {
	Published   TrackMetadata
	ArtistDirty bool
	TitleDirty  bool
	DeviceDirty bool
	Sample      *PlaybackSample
	ArtURL      string
	ArtPixels   []byte
	ArtReady    bool
}

// StateChannel carries track state from the poller to the frame loop.
// Every field is guarded by g; the two sides acquire it under their own policy.
type StateChannel struct {
	g       *guard
	publish GuardPolicy
	drain   GuardPolicy

	published TrackMetadata
	pending   TrackMetadata

	artistDirty bool
	titleDirty  bool
	deviceDirty bool

	sample *PlaybackSample

	art      *AlbumArt
	artReady bool
}

func NewStateChannel(publish, drain GuardPolicy) *StateChannel {
	return &StateChannel{
		g:       newGuard(),
		publish: publish,
		drain:   drain,
	}
}

// Publish stores the update in one critical section. It returns false, and
// drops the whole update, when the guard is not acquired in time.
func (c *StateChannel) Publish(u TrackUpdate) bool {
	if !c.g.acquire(c.publish) {
		return false
	}
	defer c.g.release()

	if u.Artist != "" && u.Artist != c.published.Artist {
		c.published.Artist = u.Artist
		c.pending.Artist = u.Artist
		c.artistDirty = true
	}
	if u.Title != "" && u.Title != c.published.Title {
		c.published.Title = u.Title
		c.pending.Title = u.Title
		c.titleDirty = true
	}
	if u.Device != "" && u.Device != c.published.DeviceName {
		c.published.DeviceName = u.Device
		c.pending.DeviceName = u.Device
		c.deviceDirty = true
	}
	if u.Sample != nil {
		c.sample = u.Sample
	}
	return true
}

// Drain copies out and clears everything dirty. ok is false on contention,
// which callers treat as "nothing changed this frame".
func (c *StateChannel) Drain() (Pending, bool) {
	if !c.g.acquire(c.drain) {
		return Pending{}, false
	}
	defer c.g.release()

	var p Pending
	if c.artistDirty {
		v := c.pending.Artist
		p.Artist = &v
		c.pending.Artist = ""
		c.artistDirty = false
	}
	if c.titleDirty {
		v := c.pending.Title
		p.Title = &v
		c.pending.Title = ""
		c.titleDirty = false
	}
	if c.deviceDirty {
		v := c.pending.DeviceName
		p.Device = &v
		c.pending.DeviceName = ""
		c.deviceDirty = false
	}

	p.Sample = c.sample

	// The consumer gets its own copy of the pixels.
	if c.artReady && c.art != nil {
		d := c.art.Descriptor()
		d.Data = append([]byte(nil), d.Data...)
		p.Art = &d
		c.artReady = false
	}
	return p, true
}

// TakeArt detaches the live art so the caller owns it for the length of a
// decode. It waits as long as needed.
func (c *StateChannel) TakeArt() *AlbumArt {
	c.g.lock()
	defer c.g.release()

	old := c.art
	c.art = nil
	c.artReady = false
	return old
}

// PublishArt makes a freshly decoded canvas live.
func (c *StateChannel) PublishArt(a *AlbumArt) {
	c.g.lock()
	defer c.g.release()

	c.art = a
	c.artReady = true
}

// RestoreArt re-attaches art after a failed decode. It reports false if newer
// art was published in the meantime, in which case the caller still owns a.
func (c *StateChannel) RestoreArt(a *AlbumArt) bool {
	if a == nil {
		return true
	}
	c.g.lock()
	defer c.g.release()

	if c.art != nil {
		return false
	}
	c.art = a
	return true
}

// Snapshot copies the channel under the drain policy. ok is false on contention.
func (c *StateChannel) Snapshot() (ChannelSnapshot, bool) {
	if !c.g.acquire(c.drain) {
		return ChannelSnapshot{}, false
	}
	defer c.g.release()

	s := ChannelSnapshot{
		Published:   c.published,
		ArtistDirty: c.artistDirty,
		TitleDirty:  c.titleDirty,
		DeviceDirty: c.deviceDirty,
		Sample:      c.sample,
		ArtURL:      c.art.URL(),
		ArtReady:    c.artReady,
	}
	if c.art != nil && c.art.pix != nil {
		s.ArtPixels = append([]byte(nil), c.art.pix...)
	}
	return s, true
}
