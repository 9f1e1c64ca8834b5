package kcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtaci/kcp-go/v5"

	"github.com/linchenxuan/logship/transport"
)

func TestDeriveKey(t *testing.T) {
	k1 := DeriveKey("secret", "salt")
	k2 := DeriveKey("secret", "salt")
	assert.Len(t, k1, _aesKeyLen)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, DeriveKey("secret", "pepper"))
}

func TestCfgValidate(t *testing.T) {
	cfg := DefaultCfg()
	assert.NoError(t, cfg.Validate())

	cfg.ParityShards = 3
	assert.Error(t, cfg.Validate())
	cfg.DataShards = 10
	assert.NoError(t, cfg.Validate())

	cfg.WindowSize = 0
	assert.Error(t, cfg.Validate())
}

func TestSendEncrypted(t *testing.T) {
	const key, salt = "secret", "salt"
	block, err := kcp.NewAESBlockCrypt(DeriveKey(key, salt))
	require.NoError(t, err)

	l, err := kcp.ListenWithOptions("127.0.0.1:0", block, 0, 0)
	require.NoError(t, err)
	defer l.Close()

	got := make(chan string, 1)
	go func() {
		sess, err := l.AcceptKCP()
		if err != nil {
			return
		}
		defer sess.Close()
		_ = sess.SetReadDeadline(time.Now().Add(3 * time.Second))
		buf := make([]byte, 1024)
		n, err := sess.Read(buf)
		if err != nil {
			return
		}
		got <- string(buf[:n])
	}()

	cfg := DefaultCfg()
	cfg.Port = l.Addr().(*net.UDPAddr).Port
	cfg.Key = key
	cfg.Salt = salt
	cfg.NoDelay = true
	tr, err := New(cfg)
	require.NoError(t, err)
	defer tr.Close()

	out := tr.Send(context.Background(), []byte("hello kcp"))
	require.Equal(t, transport.StatusSent, out.Status, out.String())

	select {
	case s := <-got:
		assert.Equal(t, "hello kcp", s)
	case <-time.After(3 * time.Second):
		t.Fatal("frame not received")
	}
}
