package sdm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sergev/swpll/appll"
	"github.com/sergev/swpll/mocks"
)

func TestTaskStepHoldsInput(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	gomock.InOrder(
		synth.EXPECT().WriteFractional(uint32(appll.FracEnable|3<<8|7)),
		synth.EXPECT().WriteFractional(uint32(7)),
		synth.EXPECT().WriteFractional(uint32(7)),
		synth.EXPECT().WriteFractional(uint32(appll.FracEnable|7<<8|7)),
	)

	m, _ := New(1, DefaultLevels, DefaultStepBits)
	mb := NewMailbox()
	task := NewTask(m, mb, synth, 0, 4<<20)
	if task.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", task.Interval, DefaultInterval)
	}

	task.Step()

	mb.Publish(0)
	task.Step()
	if task.Input() != 0 {
		t.Errorf("Input() = %d, want 0", task.Input())
	}

	// Nothing new published: the last word is held
	task.Step()

	mb.Publish(8 << 20)
	task.Step()
	if task.Ticks() != 4 {
		t.Errorf("Ticks() = %d, want 4", task.Ticks())
	}
}

func TestTaskRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	synth := mocks.NewMockSynthesizer(ctrl)
	synth.EXPECT().WriteFractional(gomock.Any()).MinTimes(1)

	m, _ := New(DefaultOrder, DefaultLevels, DefaultStepBits)
	mb := NewMailbox()
	task := NewTask(m, mb, synth, time.Millisecond, 4<<20)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	mb.Publish(5 << 20)
	err := task.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() returned %v, want context.DeadlineExceeded", err)
	}
	if task.Ticks() == 0 {
		t.Errorf("Run() wrote no register values")
	}
	if task.Input() != 5<<20 {
		t.Errorf("Input() = %d, want %d", task.Input(), 5<<20)
	}
}
