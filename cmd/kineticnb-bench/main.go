// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command kineticnb-bench submits a batch of requests over a single
// connection and reports how long the last response took to arrive. It
// exists to exercise Service end to end outside of the test suite: dial,
// submit, and drive Run in a loop until every handler has fired or a
// timeout elapses.
package main

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"code.hybscloud.com/kineticnb"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		identity uint64
		key      string
		count    int
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "kineticnb-bench",
		Short: "Drive a Service against a live server and report round-trip timing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr, identity, []byte(key), count, timeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8123", "server address to dial")
	cmd.Flags().Uint64Var(&identity, "identity", 1, "HMAC identity")
	cmd.Flags().StringVar(&key, "key", "", "HMAC key")
	cmd.Flags().IntVar(&count, "count", 100, "number of requests to submit")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall deadline")

	return cmd
}

func run(addr string, identity uint64, key []byte, count int, timeout time.Duration) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "kineticnb-bench"})

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.DialTCP("tcp", nil, tcpAddr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	sock, err := kineticnb.NewSocket(conn)
	if err != nil {
		return fmt.Errorf("wrap socket: %w", err)
	}

	opts := kineticnb.NewConnectionOptions(identity, key)
	svc := kineticnb.NewService(sock, kineticnb.HMACProvider{}, opts)
	defer svc.Close()

	var wg sync.WaitGroup
	wg.Add(count)
	start := time.Now()
	var failures int
	var mu sync.Mutex

	for i := 0; i < count; i++ {
		ackSeq := uint64(i + 1)
		env := &kineticnb.Envelope{AuthType: kineticnb.AuthTypeHMAC}
		ack := ackSeq
		cmdBytes, err := kineticnb.MarshalCommand(&kineticnb.Command{Header: &kineticnb.CommandHeader{AckSequence: &ack}})
		if err != nil {
			return fmt.Errorf("marshal command: %w", err)
		}
		env.CommandBytes = cmdBytes
		if err := signEnvelope(env, identity, key); err != nil {
			return fmt.Errorf("sign envelope: %w", err)
		}
		msgBytes, err := kineticnb.MarshalEnvelope(env)
		if err != nil {
			return fmt.Errorf("marshal envelope: %w", err)
		}

		svc.Submit(msgBytes, nil, ackSeq, kineticnb.HandlerFunc{
			HandleFn: func(cmd *kineticnb.Command, value []byte) { wg.Done() },
			ErrorFn: func(status kineticnb.Status, cmd *kineticnb.Command) {
				mu.Lock()
				failures++
				mu.Unlock()
				logger.Errorf("request failed: %s", status.Message)
				wg.Done()
			},
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	deadline := time.After(timeout)
	for {
		ready, ok := svc.Run()
		if !ok {
			logger.Error("service latched before all requests completed")
			break
		}
		select {
		case <-done:
			logger.Infof("completed %d requests (%d failed) in %s", count, failures, time.Since(start))
			return nil
		case <-deadline:
			return fmt.Errorf("timed out after %s waiting for %d/%d responses", timeout, count, count)
		default:
		}
		if ready.WantRead || ready.WantWrite {
			time.Sleep(time.Millisecond)
		}
	}
	return fmt.Errorf("service latched after %d failures", failures)
}

func signEnvelope(env *kineticnb.Envelope, identity uint64, key []byte) error {
	env.HMACAuth = &kineticnb.HMACAuth{Identity: identity}
	mac, err := (kineticnb.HMACProvider{}).Compute(env, key)
	if err != nil {
		return err
	}
	env.HMACAuth.HMAC = mac
	return nil
}
