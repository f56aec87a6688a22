// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package kineticnb

import "github.com/prometheus/client_golang/prometheus"

var (
	framesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kineticnb",
		Name:      "frames_sent_total",
		Help:      "Frames written to the wire by the Sender.",
	})
	framesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kineticnb",
		Name:      "frames_received_total",
		Help:      "Complete frames parsed by the Receiver.",
	})
	dispatchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kineticnb",
		Name:      "dispatch_errors_total",
		Help:      "Handler.Error invocations by status code.",
	}, []string{"code"})
	serviceLatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kineticnb",
		Name:      "service_latched_total",
		Help:      "Number of times a Service transitioned into its fatal-error latch.",
	})
)

func init() {
	prometheus.MustRegister(framesSent, framesReceived, dispatchErrors, serviceLatched)
}

func observeDispatchError(code StatusCode) {
	dispatchErrors.WithLabelValues(statusCodeName(code)).Inc()
}

func statusCodeName(code StatusCode) string {
	switch code {
	case ClientIOError:
		return "client_io_error"
	case ClientResponseHMACVerificationError:
		return "client_response_hmac_verification_error"
	case ClientShutdown:
		return "client_shutdown"
	case ProtocolErrorResponseNoAckSequence:
		return "protocol_error_response_no_acksequence"
	case ProtocolErrorResponseInvalidFrame:
		return "protocol_error_response_invalid_frame"
	default:
		return "unknown"
	}
}
