package observability

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestInstrumentDB_RecordsQuerySpans(t *testing.T) {
	preserveOTelGlobals(t)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	dsn := "file:obs_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := InstrumentDB(db); err != nil {
		t.Fatalf("InstrumentDB: %v", err)
	}

	ctx, parent := otel.Tracer("test").Start(context.Background(), "request")
	var n int
	if err := db.WithContext(ctx).Raw("SELECT 1").Scan(&n).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	parent.End()

	var child sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() != "request" {
			child = s
		}
	}
	if child == nil {
		t.Fatalf("no db span recorded; got %d spans", len(rec.Ended()))
	}
	if child.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Fatalf("db span is not a child of the request span")
	}
}
