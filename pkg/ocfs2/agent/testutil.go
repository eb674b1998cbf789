package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ovmcloud/ocfs2-manager/pkg/netutil"
)

// ReceivedCommand is a command observed by a TestAgentEndpoint
type ReceivedCommand struct {
	HostId    uint64
	RequestId string
	Token     string
	Command   PrepareNodesCommand
}

type TestAgentEndpoint struct {
	mu            sync.Mutex
	port          int
	requests      []*ReceivedCommand
	failures      map[uint64]string
	statusCode    int
	transient     int
	delay         time.Duration
	signingSecret string
}

// NewTestAgentEndpoint returns a new server acting as the agent on every host
// that dispatches to 127.0.0.1.
func NewTestAgentEndpoint(t *testing.T) *TestAgentEndpoint {
	availablePort, err := netutil.GetAvailablePort("localhost")
	require.NoError(t, err)

	server := &TestAgentEndpoint{
		port:     availablePort,
		failures: make(map[uint64]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(defaultPath, server.handler)
	go func() {
		require.NoError(t, http.ListenAndServe(fmt.Sprintf(":%d", availablePort), mux))
	}()
	return server
}

func (s *TestAgentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if r.Header.Get(contentTypeHeaderName) != contentTypeHeaderValue {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	hostId, err := strconv.ParseUint(r.Header.Get(hostIdHeaderName), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var cmd PrepareNodesCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	signingSecret := s.signingSecret
	statusCode := s.statusCode
	if s.transient > 0 {
		s.transient--
		statusCode = http.StatusServiceUnavailable
	}
	delay := s.delay
	failure, shouldFail := s.failures[hostId]
	s.mu.Unlock()

	token := strings.TrimPrefix(r.Header.Get(authorizationHeaderName), "Bearer ")
	if len(signingSecret) > 0 {
		var claims commandClaims
		_, err := jwt.ParseWithClaims(token, &claims, func(_ *jwt.Token) (interface{}, error) {
			return []byte(signingSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || claims.Subject != fmt.Sprint(hostId) || claims.ClusterName != cmd.ClusterName {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, &ReceivedCommand{
		HostId:    hostId,
		RequestId: r.Header.Get(requestIdHeaderName),
		Token:     token,
		Command:   cmd,
	})
	s.mu.Unlock()

	time.Sleep(delay)

	if statusCode != 0 {
		w.WriteHeader(statusCode)
		return
	}

	answer := &Answer{Result: true}
	if shouldFail {
		answer = &Answer{Result: false, Details: failure}
	}

	w.Header().Set(contentTypeHeaderName, contentTypeHeaderValue)
	json.NewEncoder(w).Encode(answer)
}

func (s *TestAgentEndpoint) Port() uint64 {
	return uint64(s.port)
}

func (s *TestAgentEndpoint) GetReceivedCommands() []*ReceivedCommand {
	s.mu.Lock()
	copied := make([]*ReceivedCommand, len(s.requests))
	copy(copied, s.requests)
	s.mu.Unlock()
	return copied
}

// SimulateFailure makes the agent answer commands for a host with a failed
// result and the provided details
func (s *TestAgentEndpoint) SimulateFailure(hostId uint64, details string) {
	s.mu.Lock()
	s.failures[hostId] = details
	s.mu.Unlock()
}

func (s *TestAgentEndpoint) SimulateStatusCode(statusCode int) {
	s.mu.Lock()
	s.statusCode = statusCode
	s.mu.Unlock()
}

// SimulateTransientFailures makes the next count requests fail with a 503
func (s *TestAgentEndpoint) SimulateTransientFailures(count int) {
	s.mu.Lock()
	s.transient = count
	s.mu.Unlock()
}

func (s *TestAgentEndpoint) SimulateDelay(delay time.Duration) {
	s.mu.Lock()
	s.delay = delay
	s.mu.Unlock()
}

func (s *TestAgentEndpoint) RequireSigningSecret(secret string) {
	s.mu.Lock()
	s.signingSecret = secret
	s.mu.Unlock()
}

func (s *TestAgentEndpoint) Reset() {
	s.mu.Lock()
	s.requests = nil
	s.failures = make(map[uint64]string)
	s.statusCode = 0
	s.transient = 0
	s.delay = 0
	s.signingSecret = ""
	s.mu.Unlock()
}
