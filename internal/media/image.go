package media

import "sync"

type ImageStatus string

const (
	ImageEmpty   ImageStatus = "empty"
	ImageLoading ImageStatus = "loading"
	ImageLoaded  ImageStatus = "loaded"
	ImageFailed  ImageStatus = "failed"
)

type ImageState struct {
	Ref    string      `json:"ref,omitempty"`
	Status ImageStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// ImageView shows one image reference with a loading placeholder.
// Load and error events for a previous reference are ignored.
type ImageView struct {
	mu      sync.Mutex
	state   ImageState
	onError func(ref, reason string)
}

func NewImageView(onError func(ref, reason string)) *ImageView {
	return &ImageView{state: ImageState{Status: ImageEmpty}, onError: onError}
}

// Load binds the view to ref.
func (v *ImageView) Load(ref string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ref == v.state.Ref && v.state.Status != ImageEmpty {
		return
	}
	if ref == "" {
		v.state = ImageState{Status: ImageEmpty}
		return
	}
	v.state = ImageState{Ref: ref, Status: ImageLoading}
}

func (v *ImageView) OnLoad(ref string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ref != v.state.Ref || v.state.Status != ImageLoading {
		return
	}
	v.state.Status = ImageLoaded
}

// OnError marks the image failed and invokes the error callback.
func (v *ImageView) OnError(ref, reason string) {
	v.mu.Lock()
	if ref != v.state.Ref || v.state.Status != ImageLoading {
		v.mu.Unlock()
		return
	}
	v.state.Status = ImageFailed
	v.state.Error = reason
	fn := v.onError
	v.mu.Unlock()

	if fn != nil {
		fn(ref, reason)
	}
}

func (v *ImageView) State() ImageState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}
