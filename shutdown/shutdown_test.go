package shutdown

import "testing"

func TestShutdownPriority(t *testing.T) {
	var lastClosed int

	add := func(label string, priority int) {
		AddHookWithPriority(label, priority, func() {
			if lastClosed > priority {
				t.Fatalf("something with a higher priority (%d) closed before (%d)", lastClosed, priority)
			} else {
				lastClosed = priority
			}
		})
	}

	add("report-store", PriorityArtifacts)
	add("profiler-container", PriorityContainers)
	add("capture", PriorityCaptures)
	add("export", PriorityCaptures)

	Shutdown()

	if lastClosed != PriorityArtifacts {
		t.Fatalf("expected the artifact hook to close last, got priority %d", lastClosed)
	}
}
