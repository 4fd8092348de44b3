package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/danmuck/ev3ctl/internal/ops"
	"github.com/danmuck/ev3ctl/internal/protocol/session"
)

const (
	defaultListPath = "/home/root/lms2012/prjs/"
	// Largest listing chunk that fits one usb report with the reply header.
	listChunk = 1012
)

func ledCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "led <pattern>",
		Short: "Set the brick LEDs (off, green, red, orange, *_flash, *_pulse)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := ops.ParseLED(args[0])
			if err != nil {
				return err
			}
			return runWithEngine(cmd, opts, func(ctx context.Context, eng *session.Engine) error {
				_, err := eng.SendDirect(ctx, ops.LED(pattern), 0, 0)
				return err
			})
		},
	}
}

func toneCmd(opts *globalOptions) *cobra.Command {
	var volume int32
	cmd := &cobra.Command{
		Use:   "tone <hz> <ms>",
		Short: "Play a tone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := parseInt32("hz", args[0])
			if err != nil {
				return err
			}
			ms, err := parseInt32("ms", args[1])
			if err != nil {
				return err
			}
			if volume < 0 || volume > 100 {
				return fmt.Errorf("volume %d out of range 0..100", volume)
			}
			return runWithEngine(cmd, opts, func(ctx context.Context, eng *session.Engine) error {
				_, err := eng.SendDirect(ctx, ops.Tone(volume, freq, ms), 0, 0)
				return err
			})
		},
	}
	cmd.Flags().Int32Var(&volume, "volume", 10, "volume 0..100")
	return cmd
}

func batteryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "battery",
		Short: "Print the battery level in percent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEngine(cmd, opts, func(ctx context.Context, eng *session.Engine) error {
				req, global := ops.BatteryPercent()
				reply, err := sendForReply(ctx, eng, req, global)
				if err != nil {
					return err
				}
				mem := reply.Payload()
				if len(mem) < global {
					return fmt.Errorf("battery reply too short: % X", reply.Frame)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d%%\n", mem[0])
				return nil
			})
		},
	}
}

func lsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory on the brick",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultListPath
			if len(args) == 1 {
				path = args[0]
			}
			return runWithEngine(cmd, opts, func(ctx context.Context, eng *session.Engine) error {
				reply, err := eng.SendSystem(ctx, ops.ListFiles(path, listChunk), true)
				if err != nil {
					return err
				}
				if !reply.Awaited() {
					if reply, err = eng.WaitSystem(ctx, reply.Counter); err != nil {
						return err
					}
				}
				listing, err := ops.ParseListFiles(reply.Payload())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), listing.Data)
				return nil
			})
		},
	}
}

func motorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "motor <ports> <speed>",
		Short: "Start motors on ports (e.g. BC) at speed -100..100",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mask, err := ops.ParsePorts(args[0])
			if err != nil {
				return err
			}
			speed, err := parseInt32("speed", args[1])
			if err != nil {
				return err
			}
			if speed < -100 || speed > 100 {
				return fmt.Errorf("speed %d out of range -100..100", speed)
			}
			return runWithEngine(cmd, opts, func(ctx context.Context, eng *session.Engine) error {
				_, err := eng.SendDirect(ctx, ops.Speed(mask, speed), 0, 0)
				return err
			})
		},
	}
}

func stopCmd(opts *globalOptions) *cobra.Command {
	var brake bool
	cmd := &cobra.Command{
		Use:   "stop <ports>",
		Short: "Stop motors on ports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mask, err := ops.ParsePorts(args[0])
			if err != nil {
				return err
			}
			return runWithEngine(cmd, opts, func(ctx context.Context, eng *session.Engine) error {
				_, err := eng.SendDirect(ctx, ops.Stop(mask, brake), 0, 0)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&brake, "brake", false, "hold position instead of coasting")
	return cmd
}

func tachoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tacho <port>",
		Short: "Print the position in degrees of the motor on one port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mask, err := ops.ParsePorts(args[0])
			if err != nil {
				return err
			}
			req, global, err := ops.ReadTacho(mask)
			if err != nil {
				return err
			}
			return runWithEngine(cmd, opts, func(ctx context.Context, eng *session.Engine) error {
				reply, err := sendForReply(ctx, eng, req, global)
				if err != nil {
					return err
				}
				deg, err := ops.DecodeFloat32(reply.Payload())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%.0f\n", deg)
				return nil
			})
		},
	}
}

// sendForReply sends a direct command that reserves global memory and
// returns its reply, waiting explicitly when the policy did not.
func sendForReply(ctx context.Context, eng *session.Engine, req []byte, global int) (session.Reply, error) {
	reply, err := eng.SendDirect(ctx, req, 0, global)
	if err != nil || reply.Awaited() {
		return reply, err
	}
	return eng.WaitDirect(ctx, reply.Counter)
}

func parseInt32(name, raw string) (int32, error) {
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return int32(v), nil
}
