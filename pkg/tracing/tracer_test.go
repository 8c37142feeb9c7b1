// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracing

import (
	"context"
	"errors"
	"testing"
)

type recordingSpan struct {
	attrs map[string]interface{}
	err   error
	ended bool
}

func (s *recordingSpan) SetAttribute(k string, v interface{}) { s.attrs[k] = v }
func (s *recordingSpan) RecordError(err error)                { s.err = err }
func (s *recordingSpan) End()                                 { s.ended = true }

type recordingTracer struct {
	names []string
	spans []*recordingSpan
}

func (r *recordingTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	s := &recordingSpan{attrs: map[string]interface{}{}}
	r.names = append(r.names, name)
	r.spans = append(r.spans, s)
	return ctx, s
}

func TestRun_Noop(t *testing.T) {
	SetTracer(nil)
	if Enabled() {
		t.Fatal("Expected the no-op tracer to be installed")
	}
	called := false
	err := Run(context.Background(), "x", nil, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Errorf("Expected fn to run without error, got called=%v err=%v", called, err)
	}
}

func TestRun_RecordsSpan(t *testing.T) {
	rt := &recordingTracer{}
	SetTracer(rt)
	defer SetTracer(nil)

	boom := errors.New("boom")
	err := Run(context.Background(), "stm32.sign", map[string]interface{}{"image.size": 272}, func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	if len(rt.spans) != 1 || rt.names[0] != "stm32.sign" {
		t.Fatalf("Expected one stm32.sign span, got %v", rt.names)
	}
	s := rt.spans[0]
	if !s.ended {
		t.Error("Expected span to be ended")
	}
	if s.attrs["image.size"] != 272 {
		t.Errorf("Expected image.size attribute, got %v", s.attrs)
	}
	if !errors.Is(s.err, boom) {
		t.Errorf("Expected error recorded on span, got %v", s.err)
	}
}
