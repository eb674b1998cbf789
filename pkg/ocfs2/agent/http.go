package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ovmcloud/ocfs2-manager/pkg/metrics"
	ocfs2_data "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/retry"
	"github.com/ovmcloud/ocfs2-manager/pkg/retry/backoff"
)

const (
	metricsStructName = "agent.httpDispatcher"

	contentTypeHeaderName  = "Content-Type"
	contentTypeHeaderValue = "application/json"

	authorizationHeaderName = "Authorization"
	requestIdHeaderName     = "X-Request-Id"
	hostIdHeaderName        = "X-OCFS2-Host-Id"

	maxAnswerSize = 64 * 1024
)

type httpDispatcher struct {
	log    *logrus.Entry
	conf   *conf
	data   ocfs2_data.Provider
	client *http.Client
}

// NewHttpDispatcher returns a Dispatcher that POSTs commands as JSON to the
// agent listening on each host's private address.
func NewHttpDispatcher(data ocfs2_data.Provider, configProvider ConfigProvider) Dispatcher {
	return &httpDispatcher{
		log:    logrus.StandardLogger().WithField("type", "agent/httpDispatcher"),
		conf:   configProvider(),
		data:   data,
		client: &http.Client{},
	}
}

// Send implements Dispatcher.Send
func (d *httpDispatcher) Send(ctx context.Context, hostId uint64, cmd *PrepareNodesCommand) (*Answer, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Send")
	tracer.AddAttribute("host", hostId)
	defer tracer.End()

	log := d.log.WithFields(logrus.Fields{
		"method":  "Send",
		"host":    hostId,
		"cluster": cmd.ClusterName,
	})

	answer, err := func() (*Answer, error) {
		record, err := d.data.GetHost(ctx, hostId)
		if err == host.ErrNotFound {
			return nil, errors.Wrapf(ErrUnreachable, "host %d not found", hostId)
		} else if err != nil {
			return nil, errors.Wrap(err, "error getting host record")
		}

		if record.Status != host.StatusUp {
			return nil, errors.Wrapf(ErrUnreachable, "host %d is in %s state", hostId, record.Status)
		}

		requestId := uuid.New().String()
		log = log.WithField("request_id", requestId)

		requestBody, err := json.Marshal(cmd)
		if err != nil {
			return nil, errors.Wrap(err, "error marshalling command")
		}

		var token string
		secret := d.conf.signingSecret.Get(ctx)
		if len(secret) > 0 {
			token, err = signCommand(secret, requestId, hostId, cmd)
			if err != nil {
				return nil, errors.Wrap(err, "error signing command")
			}
		}

		url := fmt.Sprintf("http://%s:%d%s", record.PrivateIpAddress, d.conf.port.Get(ctx), d.conf.path.Get(ctx))

		var answer *Answer
		attempts, err := retry.Retry(
			func() error {
				var postErr error
				answer, postErr = d.post(ctx, url, requestId, token, hostId, requestBody)
				return postErr
			},
			retry.RetriableErrors(ErrUnreachable),
			retry.Context(ctx),
			retry.Limit(uint(d.conf.maxAttempts.Get(ctx))),
			retry.Backoff(backoff.Constant(d.conf.retryDelay.Get(ctx)), d.conf.retryDelay.Get(ctx)),
		)
		tracer.AddAttribute("attempts", attempts)
		return answer, err
	}()

	if err != nil {
		if errors.Is(err, ErrUnreachable) {
			log.WithError(err).Debug("host agent is not addressable")
		} else {
			log.WithError(err).Warn("failure sending command to host agent")
			tracer.OnError(err)
		}
		return nil, err
	}

	log.WithField("result", answer.Result).Debug("received answer from host agent")
	return answer, nil
}

func (d *httpDispatcher) post(ctx context.Context, url, requestId, token string, hostId uint64, body []byte) (*Answer, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "error creating http request")
	}
	req.Header.Set(contentTypeHeaderName, contentTypeHeaderValue)
	req.Header.Set(requestIdHeaderName, requestId)
	req.Header.Set(hostIdHeaderName, fmt.Sprint(hostId))
	if len(token) > 0 {
		req.Header.Set(authorizationHeaderName, "Bearer "+token)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.conf.timeout.Get(ctx))
	defer cancel()
	req = req.WithContext(sendCtx)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreachable, "error executing http post request: %s", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return nil, errors.Wrapf(ErrUnreachable, "%d status code returned", resp.StatusCode)
	default:
		return nil, errors.Errorf("%d status code returned", resp.StatusCode)
	}

	var answer Answer
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAnswerSize)).Decode(&answer); err != nil {
		return nil, errors.Wrap(err, "error decoding agent answer")
	}
	return &answer, nil
}

type commandClaims struct {
	jwt.RegisteredClaims

	ClusterName string `json:"cluster_name"`
	NodeCount   int    `json:"node_count"`
}

func signCommand(secret, requestId string, hostId uint64, cmd *PrepareNodesCommand) (string, error) {
	now := time.Now()
	claims := commandClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        requestId,
			Subject:   fmt.Sprint(hostId),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		ClusterName: cmd.ClusterName,
		NodeCount:   len(cmd.Nodes),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
