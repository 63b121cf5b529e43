package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/yoavatar/internal/models"
)

type Dispatcher interface {
	Dispatch(job *models.Job) bool
	InFlight() int
}

// ChatService turns chat_with_avatar requests into jobs.
type ChatService interface {
	Submit(clientID string, req models.ChatRequest) (jobID string, accepted bool)
	ActiveJobs() int
}

type chatService struct {
	dispatcher Dispatcher
	now        func() time.Time
}

func NewChatService(d Dispatcher) ChatService {
	return &chatService{dispatcher: d, now: time.Now}
}

// Submit never validates: a bad request still becomes a job, which reports the
// problem to the client through the event channel.
func (s *chatService) Submit(clientID string, req models.ChatRequest) (string, bool) {
	job := models.NewJob(uuid.NewString(), clientID, req, s.now())
	return job.ID, s.dispatcher.Dispatch(job)
}

func (s *chatService) ActiveJobs() int { return s.dispatcher.InFlight() }
