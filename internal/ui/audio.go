package ui

// Output is the part of an audio device the window drives. audio.Device
// implements it.
type Output interface {
	Play()
	Pause()
	IsPlaying() bool
	SetMuted(bool)
}

// syncAudio keeps the device in step with the window: halted while paused
// or in the menu, muted while fast-forwarding since the core produces
// audio faster than the device drains it.
func (a *App) syncAudio() {
	if a.out == nil {
		return
	}
	halted := a.paused || a.menu.open()
	switch {
	case halted && a.out.IsPlaying():
		a.out.Pause()
	case !halted && !a.out.IsPlaying():
		a.out.Play()
	}
	a.out.SetMuted(a.fast)
}
