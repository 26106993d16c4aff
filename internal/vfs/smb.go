package vfs

import (
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hirochachacha/go-smb2"

	"github.com/sublayer/sublayer/internal/errs"
	"github.com/sublayer/sublayer/pkg/log"
)

// SMBConfig is the share connection configuration.
type SMBConfig struct {
	Host     string
	Share    string
	Username string
	Password string
	Domain   string
	// RootPath confines browsing to a subtree of the share.
	RootPath string
}

// SMB browses a network share. Connections are short-lived: each operation
// dials, mounts, runs and disconnects, so a flaky NAS never wedges the
// process.
type SMB struct {
	config func() SMBConfig
}

// NewSMB builds an SMB adapter; config is read per call.
func NewSMB(config func() SMBConfig) *SMB {
	return &SMB{config: config}
}

func (s *SMB) IsConfigured() bool {
	cfg := s.config()
	return cfg.Host != "" && cfg.Share != "" && cfg.Username != ""
}

func (s *SMB) TestConnection() error {
	if !s.IsConfigured() {
		return errs.New(errs.NotConfigured, "SMB connection is not configured")
	}
	return s.withShare(func(share *smb2.Share, cfg SMBConfig) error {
		_, err := share.ReadDir(toSMBPath(cfg.RootPath))
		if err != nil {
			return errs.Wrap(errs.UpstreamUnavailable, "SMB share is not readable", err).
				WithContext("share", cfg.Share)
		}
		log.Info("SMB connection test successful: //%s/%s", cfg.Host, cfg.Share)
		return nil
	})
}

// withShare runs fn against a freshly mounted share.
func (s *SMB) withShare(fn func(share *smb2.Share, cfg SMBConfig) error) error {
	cfg := s.config()
	if cfg.Host == "" || cfg.Share == "" {
		return errs.New(errs.NotConfigured, "SMB connection is not configured")
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(cfg.Host, "445"), 10*time.Second)
	if err != nil {
		return errs.Wrap(errs.UpstreamUnavailable, "cannot reach SMB host", err).
			WithContext("host", cfg.Host)
	}
	defer conn.Close()

	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     cfg.Username,
			Password: cfg.Password,
			Domain:   cfg.Domain,
		},
	}
	session, err := dialer.Dial(conn)
	if err != nil {
		return errs.Wrap(errs.UpstreamUnavailable, "SMB authentication failed", err).
			WithContext("host", cfg.Host)
	}
	defer session.Logoff()

	share, err := session.Mount(cfg.Share)
	if err != nil {
		return errs.Wrap(errs.UpstreamUnavailable, "failed to mount SMB share", err).
			WithContext("share", cfg.Share)
	}
	defer share.Umount()

	return fn(share, cfg)
}

// resolveSMB joins a relative path onto the configured root and rejects
// escapes.
func resolveSMB(cfg SMBConfig, rel string) (string, error) {
	root := strings.Trim(cfg.RootPath, "/")
	joined := path.Clean(path.Join(root, strings.Trim(rel, "/")))
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return "", errs.New(errs.BadInput, "path escapes the configured root").
			WithContext("path", rel)
	}
	if root != "" && joined != root && !strings.HasPrefix(joined, root+"/") {
		return "", errs.New(errs.BadInput, "path escapes the configured root").
			WithContext("path", rel)
	}
	if joined == "." {
		joined = ""
	}
	return joined, nil
}

// toSMBPath converts a slash path to the share's separator.
func toSMBPath(p string) string {
	return strings.ReplaceAll(strings.Trim(p, "/"), "/", `\`)
}

func (s *SMB) List(dir string) ([]Entry, error) {
	var entries []Entry
	err := s.withShare(func(share *smb2.Share, cfg SMBConfig) error {
		full, err := resolveSMB(cfg, dir)
		if err != nil {
			return err
		}

		infos, err := share.ReadDir(toSMBPath(full))
		if err != nil {
			return errs.Wrap(errs.BadInput, "directory not found", err).
				WithContext("path", dir)
		}

		items := make([]item, 0, len(infos))
		for _, info := range infos {
			items = append(items, item{name: info.Name(), isDir: info.IsDir()})
		}
		entries = buildEntries(items, strings.Trim(dir, "/"))
		return nil
	})
	return entries, err
}

func (s *SMB) ReadSubtitle(subtitlePath string) (string, error) {
	var content string
	err := s.withShare(func(share *smb2.Share, cfg SMBConfig) error {
		full, err := resolveSMB(cfg, subtitlePath)
		if err != nil {
			return err
		}
		data, err := share.ReadFile(toSMBPath(full))
		if err != nil {
			return errs.Wrap(errs.BadInput, "subtitle not found", err).
				WithContext("path", subtitlePath)
		}
		content = string(data)
		return nil
	})
	return content, err
}

func (s *SMB) WriteSubtitle(videoPath, content, langCode string) (string, error) {
	var created string
	err := s.withShare(func(share *smb2.Share, cfg SMBConfig) error {
		full, err := resolveSMB(cfg, videoPath)
		if err != nil {
			return err
		}

		dir := path.Dir(full)
		subtitleName := baseName(path.Base(full)) + "." + langCode + ".srt"
		target := path.Join(dir, subtitleName)

		if err := share.WriteFile(toSMBPath(target), []byte(content), 0o644); err != nil {
			return errs.Wrap(errs.UpstreamUnavailable, "failed to write subtitle to share", err).
				WithContext("path", target)
		}
		log.Info("Saved subtitle to //%s/%s/%s", cfg.Host, cfg.Share, target)

		created = strings.TrimPrefix(path.Join(path.Dir(strings.Trim(videoPath, "/")), subtitleName), "/")
		return nil
	})
	return created, err
}

func (s *SMB) WriteSubtitleDirect(subtitlePath, content string) error {
	return s.withShare(func(share *smb2.Share, cfg SMBConfig) error {
		full, err := resolveSMB(cfg, subtitlePath)
		if err != nil {
			return err
		}
		if err := share.WriteFile(toSMBPath(full), []byte(content), 0o644); err != nil {
			return errs.Wrap(errs.UpstreamUnavailable, "failed to write subtitle to share", err).
				WithContext("path", subtitlePath)
		}
		return nil
	})
}

func (s *SMB) DownloadToTemp(remotePath string) (string, error) {
	return s.copyToTemp(remotePath, "video_", -1)
}

func (s *SMB) DownloadHeaderToTemp(remotePath string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = HeaderBytes
	}
	return s.copyToTemp(remotePath, "video_header_", maxBytes)
}

func (s *SMB) copyToTemp(remotePath, prefix string, maxBytes int64) (string, error) {
	var tmpPath string
	err := s.withShare(func(share *smb2.Share, cfg SMBConfig) error {
		full, err := resolveSMB(cfg, remotePath)
		if err != nil {
			return err
		}

		src, err := share.Open(toSMBPath(full))
		if err != nil {
			return errs.Wrap(errs.BadInput, "video not found on share", err).
				WithContext("path", remotePath)
		}
		defer src.Close()

		tmp, err := os.CreateTemp("", prefix+"*"+filepath.Ext(remotePath))
		if err != nil {
			return errs.Wrap(errs.Internal, "failed to create temp file", err)
		}
		defer tmp.Close()

		var reader io.Reader = src
		if maxBytes >= 0 {
			reader = io.LimitReader(src, maxBytes)
		}
		written, err := io.Copy(tmp, reader)
		if err != nil {
			os.Remove(tmp.Name())
			return errs.Wrap(errs.UpstreamUnavailable, "failed to copy video from share", err).
				WithContext("path", remotePath)
		}

		log.Debug("Copied %d bytes of %s to %s", written, remotePath, tmp.Name())
		tmpPath = tmp.Name()
		return nil
	})
	return tmpPath, err
}

func (s *SMB) ExtractVideoTitle(videoPath string) string {
	return ExtractTitle(videoPath)
}
