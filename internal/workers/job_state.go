package workers

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/metrics"
	"github.com/yoockh/yoavatar/internal/utils"
)

type jobState string

const (
	stateStaging            jobState = "staging"
	stateTranscribing       jobState = "transcribing"
	stateGeneratingReply    jobState = "generating_reply"
	stateSynthesizingSpeech jobState = "synthesizing_speech"
	stateRenderingVideo     jobState = "rendering_video"
	stateDelivering         jobState = "delivering"
	stateComplete           jobState = "complete"
	stateFailed             jobState = "failed"
)

var stateRank = map[jobState]int{
	stateStaging:            0,
	stateTranscribing:       1,
	stateGeneratingReply:    2,
	stateSynthesizingSpeech: 3,
	stateRenderingVideo:     4,
	stateDelivering:         5,
	stateComplete:           6,
}

// stateTracker enforces forward-only, one-step transitions and times each state.
type stateTracker struct {
	cur     jobState
	entered time.Time
	log     *logrus.Entry
	metrics *metrics.Metrics
	now     func() time.Time
}

func newStateTracker(log *logrus.Entry, m *metrics.Metrics) *stateTracker {
	t := &stateTracker{cur: stateStaging, log: log, metrics: m, now: time.Now}
	t.entered = t.now()
	return t
}

func (t *stateTracker) advance(next jobState) error {
	if t.cur == stateFailed || t.cur == stateComplete || stateRank[next] != stateRank[t.cur]+1 {
		return utils.K(utils.KindInternal, "stateTracker.advance", fmt.Sprintf("illegal transition %s -> %s", t.cur, next), nil)
	}
	t.leave()
	t.cur = next
	return nil
}

func (t *stateTracker) fail() {
	if t.cur == stateComplete || t.cur == stateFailed {
		return
	}
	t.leave()
	t.cur = stateFailed
}

func (t *stateTracker) leave() {
	d := t.now().Sub(t.entered)
	t.metrics.ObserveStage(string(t.cur), d)
	t.log.WithFields(logrus.Fields{"state": t.cur, "elapsed_ms": d.Milliseconds()}).Debug("state done")
	t.entered = t.now()
}
