package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// agentRole is the role tag the voice worker attaches to utterances
// produced by the automated agent (as opposed to the call target).
const agentRole = "assistant"

// eventBuffer sizes the channel between the event handlers and the
// append loop. Handlers never do more work than a channel send, so the
// buffer only needs to absorb short finalization bursts.
const eventBuffer = 256

type appendEvent struct {
	msg TranscriptMessage
	ack chan struct{} // barrier for tests; nil on normal appends
}

// Recorder serializes the two asynchronous event streams of a live call
// into the session's append-only transcript. Both streams feed a single
// channel drained by one goroutine, so the transcript has exactly one
// writer and its order is arrival order of finalization; the Recorder
// never reorders.
type Recorder struct {
	session *CallSession
	logger  *slog.Logger

	mu    sync.Mutex
	state State

	events chan appendEvent
	stop   chan struct{}
	done   chan struct{}
}

func NewRecorder(s *CallSession, logger *slog.Logger) *Recorder {
	return &Recorder{
		session: s,
		logger:  logger,
		state:   StateCreated,
		events:  make(chan appendEvent, eventBuffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Originating marks the session as waiting on call provisioning.
func (r *Recorder) Originating() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateCreated {
		r.state = StateOriginating
	}
}

// Start marks the session active, stamps the call start time, and
// begins draining events into the transcript.
func (r *Recorder) Start() {
	r.mu.Lock()
	if r.state == StateActive || r.state == StateEnded {
		r.mu.Unlock()
		return
	}
	r.state = StateActive
	r.session.CallStarted = time.Now().UTC()
	r.mu.Unlock()

	go r.loop()
}

// End stamps the call end time and stops the append loop. Events that
// arrive after End are dropped, not queued. Safe to call more than once.
func (r *Recorder) End() {
	r.mu.Lock()
	if r.state == StateEnded {
		r.mu.Unlock()
		return
	}
	started := r.state == StateActive
	r.state = StateEnded
	r.session.CallEnded = time.Now().UTC()
	r.mu.Unlock()

	if started {
		close(r.stop)
		<-r.done
	}
	r.logger.Info("call session ended", "room", r.session.Room, "transcript_len", len(r.session.Transcript))
}

// OnTranscription handles a target speech event. Only finalized
// transcriptions are appended; interim hypotheses are discarded.
func (r *Recorder) OnTranscription(text string, final bool) {
	if !final {
		return
	}
	r.submit(TranscriptMessage{
		Speaker:    SpeakerTarget,
		Content:    text,
		ObservedAt: time.Now().UTC(),
	})
}

// OnAgentUtterance handles a conversation item event from the voice
// worker. Only agent-role items are appended; multi-part content is
// joined into a single string.
func (r *Recorder) OnAgentUtterance(role string, parts []string) {
	if role != agentRole {
		return
	}
	content := strings.TrimSpace(strings.Join(parts, " "))
	if content == "" {
		return
	}
	r.submit(TranscriptMessage{
		Speaker:    SpeakerAgent,
		Content:    content,
		ObservedAt: time.Now().UTC(),
	})
}

func (r *Recorder) submit(msg TranscriptMessage) {
	if r.State() != StateActive {
		r.logger.Debug("dropping event outside active session", "speaker", msg.Speaker, "state", r.State().String())
		return
	}
	select {
	case r.events <- appendEvent{msg: msg}:
	case <-r.done:
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.stop:
			// Drain events that arrived before the end signal; anything
			// submitted after it was already rejected.
			for {
				select {
				case e := <-r.events:
					r.handle(e)
				default:
					return
				}
			}
		case e := <-r.events:
			r.handle(e)
		}
	}
}

func (r *Recorder) handle(e appendEvent) {
	if e.ack != nil {
		close(e.ack)
		return
	}
	r.session.Transcript = append(r.session.Transcript, e.msg)
}

// flush blocks until every event submitted before it has been appended.
func (r *Recorder) flush() {
	ack := make(chan struct{})
	select {
	case r.events <- appendEvent{ack: ack}:
	case <-r.done:
		return
	}
	select {
	case <-ack:
	case <-r.done:
	}
}
