package grpc

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	ErrInvalidFullMethodName = errors.New("invalid full method name")

	healthCheckEndpoint = "/" + healthgrpc.Health_ServiceDesc.ServiceName + "/Check"

	// "/<package>.<Service>/<Method>", with at least one package component
	fullMethodNameRegex = regexp.MustCompile(`^/([a-zA-Z0-9]+\.)+[a-zA-Z0-9]+/[a-zA-Z0-9]+$`)
)

// ParseFullMethodName splits a gRPC full method name such as
// "/ocfs2.admin.v1.Admin/PrepareCluster"
func ParseFullMethodName(fullMethodName string) (packageName, serviceName, methodName string, err error) {
	if !fullMethodNameRegex.MatchString(fullMethodName) {
		return "", "", "", ErrInvalidFullMethodName
	}

	service, methodName, _ := strings.Cut(fullMethodName[1:], "/")

	dot := strings.LastIndexByte(service, '.')
	return service[:dot], service[dot+1:], methodName, nil
}

func IsHealthCheckEndpoint(methodName string) bool {
	return methodName == healthCheckEndpoint
}
