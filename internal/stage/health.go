package stage

import "fmt"

// Health summarizes whether a stage's collaborators are reachable and its
// prerequisites configured.
type Health struct {
	Stage  string
	Ready  bool
	Detail string
}

// Healthy marks a stage ready to execute.
func Healthy(stageName string) Health {
	return Health{Stage: stageName, Ready: true}
}

// Unhealthy marks a stage not ready, with the blocking detail.
func Unhealthy(stageName, detail string) Health {
	return Health{Stage: stageName, Ready: false, Detail: detail}
}

func (h Health) String() string {
	if h.Ready {
		return fmt.Sprintf("%s: ready", h.Stage)
	}
	return fmt.Sprintf("%s: %s", h.Stage, h.Detail)
}
