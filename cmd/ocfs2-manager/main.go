package main

import (
	"github.com/sirupsen/logrus"

	grpc_app "github.com/ovmcloud/ocfs2-manager/pkg/grpc/app"
	ocfs2_app "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/app"
)

func main() {
	if err := grpc_app.Run(ocfs2_app.New()); err != nil {
		logrus.StandardLogger().WithError(err).Fatal("error running ocfs2 manager")
	}
}
