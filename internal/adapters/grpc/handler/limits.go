package handler

import (
	"encoding/base64"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/document"
	"google.golang.org/grpc"
)

const (
	// defaultMessageSizeLimit は gRPC 既定の受信上限 (4MiB) です。
	defaultMessageSizeLimit = 4 << 20
	messageHeadroomBytes    = 1 << 20
)

// MessageSizeLimit は base64 化した書類を含むメッセージの上限バイト数を返します。
// maxDocumentBytes が 0 以下の場合は既定の書類上限を使います。
func MessageSizeLimit(maxDocumentBytes int64) int {
	if maxDocumentBytes <= 0 {
		maxDocumentBytes = document.DefaultMaxSizeBytes
	}
	limit := base64.StdEncoding.EncodedLen(int(maxDocumentBytes)) + messageHeadroomBytes
	return max(limit, defaultMessageSizeLimit)
}

// ServerMessageOptions は書類上限に合わせたサーバー側の受信上限を返します。
func ServerMessageOptions(maxDocumentBytes int64) []grpc.ServerOption {
	return []grpc.ServerOption{grpc.MaxRecvMsgSize(MessageSizeLimit(maxDocumentBytes))}
}

// ClientCallOptions は書類上限に合わせたクライアント側の送受信上限を返します。
func ClientCallOptions(maxDocumentBytes int64) []grpc.CallOption {
	limit := MessageSizeLimit(maxDocumentBytes)
	return []grpc.CallOption{grpc.MaxCallRecvMsgSize(limit), grpc.MaxCallSendMsgSize(limit)}
}
