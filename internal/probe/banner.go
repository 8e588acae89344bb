package probe

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
)

// BannerResult is the outcome of one banner grab. Banner is empty when the
// service sent nothing before the deadline or closed the connection.
type BannerResult struct {
	Address string
	Banner  string
	Err     error
}

// BannerReader connects to an address and reads its greeting.
type BannerReader interface {
	Grab(ctx context.Context, address string) BannerResult
}

// BannerGrabber performs a single bounded read after connecting.
type BannerGrabber struct {
	timeout  time.Duration
	maxBytes int
	dialer   *net.Dialer
	logger   *logging.Logger
}

// NewBannerGrabber creates a BannerGrabber from probe settings.
func NewBannerGrabber(cfg config.ProbeConfig, logger *logging.Logger) *BannerGrabber {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	maxBytes := cfg.BannerBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultBannerBytes
	}
	return &BannerGrabber{
		timeout:  cfg.Timeout,
		maxBytes: maxBytes,
		dialer:   &net.Dialer{Timeout: cfg.Timeout},
		logger:   logger.WithComponent("banner"),
	}
}

// Grab connects to address and performs one read of up to maxBytes. The
// connect and the read each get the configured timeout.
func (b *BannerGrabber) Grab(ctx context.Context, address string) BannerResult {
	result := BannerResult{Address: address}

	conn, err := b.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		code := errors.CodeHostUnreachable
		if fetchErrorCode(err) == errors.CodeTimeout {
			code = errors.CodeTimeout
		}
		result.Err = errors.WrapProbeError(code, "connect", address, err)
		return result
	}
	defer func() { _ = conn.Close() }()

	if b.timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(b.timeout)); err != nil {
			result.Err = errors.WrapProbeError(errors.CodeProbeFailed, "set deadline", address, err)
			return result
		}
	}

	buf := make([]byte, b.maxBytes)
	n, err := conn.Read(buf)
	if n > 0 {
		result.Banner = decodeBanner(buf[:n])
	}
	if err != nil && !stderrors.Is(err, io.EOF) && n == 0 {
		result.Err = errors.WrapProbeError(fetchErrorCode(err), "read", address, err)
	}

	b.logger.DebugProbe("Banner read", address, "bytes", n, "error", err)
	return result
}

// decodeBanner drops invalid UTF-8 sequences and surrounding whitespace.
func decodeBanner(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
}
