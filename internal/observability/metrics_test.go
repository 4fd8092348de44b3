package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCommandCounts(t *testing.T) {
	before := testutil.ToFloat64(commandsSent.WithLabelValues("usb", "direct", "true"))
	RecordCommand("usb", "direct", true)
	RecordCommand("usb", "direct", true)
	after := testutil.ToFloat64(commandsSent.WithLabelValues("usb", "direct", "true"))
	if after-before != 2 {
		t.Fatalf("commands delta got=%v want=2", after-before)
	}
}

func TestRecordStashedAndShortReads(t *testing.T) {
	RecordStashed("wifi")
	RecordShortRead("wifi")
	RecordReply("wifi", "system", false, 5*time.Millisecond)
	if got := testutil.ToFloat64(stashed.WithLabelValues("wifi")); got < 1 {
		t.Fatalf("stashed got=%v", got)
	}
	if got := testutil.ToFloat64(shortReads.WithLabelValues("wifi")); got < 1 {
		t.Fatalf("short reads got=%v", got)
	}
	if got := testutil.ToFloat64(replies.WithLabelValues("wifi", "system", "false")); got < 1 {
		t.Fatalf("replies got=%v", got)
	}
}
