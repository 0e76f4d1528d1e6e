package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yungbote/coursetree-backend/internal/domain/tree"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	var selectFlag string
	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Classify a goal, discover styles and optionally finish the tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openCore(ctx, v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()

			input := strings.Join(args, " ")
			sess, err := s.core.Engine.Start(ctx, uuid.NewString(), input, "")
			if err != nil {
				return reportFailure(cmd.OutOrStdout(), sess, err)
			}
			printShortlist(cmd.OutOrStdout(), sess)
			if selectFlag == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nresume with: treectl resume %s --select 0,1\n", sess.ID)
				return nil
			}
			return s.resume(ctx, cmd.OutOrStdout(), sess.ID, selectFlag)
		},
	}
	cmd.Flags().StringVar(&selectFlag, "select", "", "comma separated shortlist indices or style ids")
	return cmd
}

func newResumeCmd(v *viper.Viper) *cobra.Command {
	var selectFlag string
	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Submit a style selection and generate the tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if selectFlag == "" {
				return fmt.Errorf("--select is required")
			}
			s, err := openCore(cmd.Context(), v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer s.Close()
			return s.resume(cmd.Context(), cmd.OutOrStdout(), args[0], selectFlag)
		},
	}
	cmd.Flags().StringVar(&selectFlag, "select", "", "comma separated shortlist indices or style ids")
	return cmd
}

func (s *session) resume(ctx context.Context, out io.Writer, id, raw string) error {
	sess, err := s.core.Engine.Resume(ctx, id, parseSelection(raw))
	if err != nil {
		return reportFailure(out, sess, err)
	}
	if sess.State != tree.StateDone {
		return fmt.Errorf("session %s stopped in state %s", id, sess.State)
	}
	b, err := s.core.Books.Publish(ctx, sess)
	if err != nil {
		return err
	}
	return writeJSON(out, b)
}

// parseSelection treats integers as shortlist positions and anything else as a style id.
func parseSelection(raw string) tree.Selection {
	var sel tree.Selection
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i, err := strconv.Atoi(part); err == nil {
			sel.Indices = append(sel.Indices, i)
			continue
		}
		sel.IDs = append(sel.IDs, part)
	}
	return sel
}

func printShortlist(out io.Writer, sess *tree.Session) {
	fmt.Fprintf(out, "session %s (%s, entry level %s)\n", sess.ID, sess.State, sess.EntryLevel)
	for i, st := range sess.Shortlist {
		fmt.Fprintf(out, "  [%d] %s: %s\n", i, st.Title, st.Description)
	}
}

func reportFailure(out io.Writer, sess *tree.Session, err error) error {
	if sess != nil && sess.Failure != nil {
		fmt.Fprintf(out, "session %s failed at %s: %s\n", sess.ID, sess.Failure.Stage, sess.Failure.Message)
	}
	return err
}
