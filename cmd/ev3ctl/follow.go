package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/danmuck/ev3ctl/internal/ops"
	"github.com/danmuck/ev3ctl/internal/pid"
	"github.com/danmuck/ev3ctl/internal/protocol/session"
)

type followOptions struct {
	ports      string
	sensorPort int
	mode       int
	setpoint   float64
	kp, ki, kd float64
	halfLife   time.Duration
	interval   time.Duration
	duration   time.Duration
}

// followCmd drives motors from one sensor through a PID controller, e.g. to
// hold a distance with the ultrasonic sensor.
func followCmd(opts *globalOptions) *cobra.Command {
	fo := followOptions{}
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Regulate motor speed toward a sensor setpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mask, err := ops.ParsePorts(fo.ports)
			if err != nil {
				return err
			}
			if fo.sensorPort < 1 || fo.sensorPort > 4 {
				return fmt.Errorf("sensor port %d out of range 1..4", fo.sensorPort)
			}
			if fo.interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			return runWithEngine(cmd, opts, func(ctx context.Context, eng *session.Engine) error {
				if fo.duration > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, fo.duration)
					defer cancel()
				}
				return follow(ctx, eng, mask, fo)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&fo.ports, "ports", "BC", "motor ports")
	f.IntVar(&fo.sensorPort, "sensor", 4, "sensor input port 1..4")
	f.IntVar(&fo.mode, "mode", 0, "sensor mode")
	f.Float64Var(&fo.setpoint, "setpoint", 20, "target sensor value")
	f.Float64Var(&fo.kp, "kp", 3, "proportional gain")
	f.Float64Var(&fo.ki, "ki", 0, "integral gain")
	f.Float64Var(&fo.kd, "kd", 0, "derivative gain")
	f.DurationVar(&fo.halfLife, "half-life", 0, "smoothing half-life of sensor readings")
	f.DurationVar(&fo.interval, "interval", 100*time.Millisecond, "control period")
	f.DurationVar(&fo.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

func follow(ctx context.Context, eng *session.Engine, mask byte, fo followOptions) error {
	ctrl := pid.New(pid.Config{
		Setpoint: fo.setpoint,
		GainProp: fo.kp,
		GainInt:  fo.ki,
		GainDer:  fo.kd,
		HalfLife: fo.halfLife,
	})
	req, global, err := ops.ReadSensorSI(int32(fo.sensorPort-1), int32(fo.mode))
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := eng.SendDirect(stopCtx, ops.Stop(mask, true), 0, 0); err != nil {
			log.Warn().Msgf("ev3ctl follow stop failed err=%v", err)
		}
	}()

	ticker := time.NewTicker(fo.interval)
	defer ticker.Stop()
	for {
		reply, err := sendForReply(ctx, eng, req, global)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		value, err := ops.DecodeFloat32(reply.Payload())
		if err != nil {
			return err
		}
		speed := clampSpeed(ctrl.Signal(float64(value)))
		log.Debug().Msgf("ev3ctl follow value=%.2f setpoint=%.2f speed=%d", value, ctrl.Setpoint(), speed)
		if _, err := eng.SendDirect(ctx, ops.Speed(mask, speed), 0, 0); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func clampSpeed(signal float64) int32 {
	if math.IsNaN(signal) {
		return 0
	}
	return int32(math.Round(math.Max(-100, math.Min(100, signal))))
}
