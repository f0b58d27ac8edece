package depositflow_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	. "github.com/meridianbank/depositflow"
	"github.com/meridianbank/depositflow/handler"
	"github.com/meridianbank/depositflow/persistence/memory"
	"github.com/meridianbank/depositflow/process"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Engine", func() {
	var (
		ctx    context.Context
		logger *logging.BufferedLogger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = &logging.BufferedLogger{}
	})

	Describe("func Start()", func() {
		var engine *Engine

		BeforeEach(func() {
			engine = New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "approve", Kind: process.UserTask, TaskName: "Approve"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "approve"},
						{From: "approve", To: "end"},
					},
				}),
				WithLogger(logger),
			)
		})

		It("advances the instance to the first wait state", func() {
			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status()).To(Equal(StatusWaiting))
			Expect(inst.WaitingAt()).To(ConsistOf("approve"))
			Expect(inst.HasPassed("start")).To(BeTrue())
		})

		It("returns an error for an unknown definition", func() {
			_, err := engine.Start(ctx, "<unknown>", "<bk>", nil)
			Expect(err).To(MatchError(ErrUnknownDefinition))
		})

		It("picks the correlation ID up from the variables", func() {
			inst, err := engine.Start(ctx, "<def>", "<bk>", process.Variables{
				"correlationId": "<cid>",
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.CorrelationID()).To(Equal("<cid>"))

			found, ok := engine.FindInstance("<def>", "<cid>")
			Expect(ok).To(BeTrue())
			Expect(found.ID()).To(Equal(inst.ID()))
		})
	})

	Describe("func CompleteTask()", func() {
		var (
			engine *Engine
			inst   *Instance
		)

		BeforeEach(func() {
			engine = New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "approve", Kind: process.UserTask, TaskName: "Approve"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "approve"},
						{From: "approve", To: "end"},
					},
				}),
				WithLogger(logger),
			)

			var err error
			inst, err = engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("merges the variables and advances the instance", func() {
			err := engine.CompleteTask(
				ctx,
				TaskRef{InstanceID: inst.ID(), NodeID: "approve"},
				process.Variables{"approved": true},
			)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(inst.Status()).To(Equal(StatusEnded))

			v, ok := inst.Variable("approved")
			Expect(ok).To(BeTrue())
			Expect(v).To(BeTrue())
		})

		It("returns an error for an unknown instance", func() {
			err := engine.CompleteTask(
				ctx,
				TaskRef{InstanceID: "<unknown>", NodeID: "approve"},
				nil,
			)
			Expect(err).To(MatchError(ErrInstanceNotFound))
		})

		It("returns an error when no task is waiting at the node", func() {
			err := engine.CompleteTask(
				ctx,
				TaskRef{InstanceID: inst.ID(), NodeID: "end"},
				nil,
			)
			Expect(err).To(MatchError(ErrTaskNotWaiting))
		})

		It("returns an error when completed twice", func() {
			ref := TaskRef{InstanceID: inst.ID(), NodeID: "approve"}

			Expect(engine.CompleteTask(ctx, ref, nil)).To(Succeed())

			err := engine.CompleteTask(ctx, ref, nil)
			Expect(err).To(MatchError(ErrTaskNotWaiting))
		})
	})

	Describe("func PendingTasks()", func() {
		It("lists waiting user tasks across instances", func() {
			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "approve", Kind: process.UserTask, TaskName: "Approve"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "approve"},
						{From: "approve", To: "end"},
					},
				}),
				WithLogger(logger),
			)

			_, err := engine.Start(ctx, "<def>", "<bk-1>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			_, err = engine.Start(ctx, "<def>", "<bk-2>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(engine.PendingTasks()).To(HaveLen(2))
			Expect(engine.TasksByName("Approve")).To(HaveLen(2))
			Expect(engine.TasksByName("<other>")).To(BeEmpty())
		})
	})

	Describe("exclusive gateways", func() {
		var engine *Engine

		BeforeEach(func() {
			engine = New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "route", Kind: process.ExclusiveGateway},
						{ID: "left", Kind: process.End},
						{ID: "right", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "route"},
						{From: "route", To: "left", Guard: process.VarTrue("goLeft")},
						{From: "route", To: "right", Guard: process.VarEquals("direction", "right")},
					},
				}),
				WithLogger(logger),
			)
		})

		It("routes along the first matching edge", func() {
			inst, err := engine.Start(ctx, "<def>", "<bk>", process.Variables{
				"goLeft": true,
			})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.HasPassed("left")).To(BeTrue())
		})

		It("terminates the instance when no edge matches", func() {
			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).To(MatchError(ErrNoMatchingGateway))
			Expect(inst.Status()).To(Equal(StatusTerminated))
		})
	})

	Describe("parallel gateways", func() {
		It("forks the token and joins when every branch arrives", func() {
			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "fork", Kind: process.ParallelGateway},
						{ID: "left", Kind: process.UserTask, TaskName: "Left"},
						{ID: "right", Kind: process.UserTask, TaskName: "Right"},
						{ID: "join", Kind: process.ParallelGateway},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "fork"},
						{From: "fork", To: "left"},
						{From: "fork", To: "right"},
						{From: "left", To: "join"},
						{From: "right", To: "join"},
						{From: "join", To: "end"},
					},
				}),
				WithLogger(logger),
			)

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.WaitingAt()).To(ConsistOf("left", "right"))

			err = engine.CompleteTask(ctx, TaskRef{InstanceID: inst.ID(), NodeID: "left"}, nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status()).To(Equal(StatusWaiting))
			Expect(inst.HasPassed("join")).To(BeFalse())

			err = engine.CompleteTask(ctx, TaskRef{InstanceID: inst.ID(), NodeID: "right"}, nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status()).To(Equal(StatusEnded))
			Expect(inst.HasPassed("join", "end")).To(BeTrue())
		})
	})

	Describe("task handlers", func() {
		It("merges the handler's output variables", func() {
			handlers := handler.NewRegistry()
			handlers.Register("stamp", func(context.Context, process.Variables) (process.Variables, error) {
				return process.Variables{"stamped": true}, nil
			})

			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "work", Kind: process.Task, Handler: "stamp"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "work"},
						{From: "work", To: "end"},
					},
				}),
				WithHandlers(handlers),
				WithLogger(logger),
			)

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status()).To(Equal(StatusEnded))

			v, _ := inst.Variable("stamped")
			Expect(v).To(BeTrue())
		})

		It("terminates the instance on a non-domain error", func() {
			handlers := handler.NewRegistry()
			handlers.Register("explode", func(context.Context, process.Variables) (process.Variables, error) {
				return nil, errors.New("<boom>")
			})

			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "work", Kind: process.Task, Handler: "explode"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "work"},
						{From: "work", To: "end"},
					},
				}),
				WithHandlers(handlers),
				WithLogger(logger),
			)

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).To(MatchError(ContainSubstring("<boom>")))
			Expect(inst.Status()).To(Equal(StatusTerminated))
		})

		It("advances other instances while a handler is in flight", func() {
			entered := make(chan struct{})
			release := make(chan struct{})

			handlers := handler.NewRegistry()
			handlers.Register("block", func(context.Context, process.Variables) (process.Variables, error) {
				close(entered)
				<-release
				return nil, nil
			})

			engine := New(
				WithDefinitions(
					&process.Definition{
						Key: "<slow>",
						Nodes: []process.Node{
							{ID: "start", Kind: process.Start},
							{ID: "work", Kind: process.Task, Handler: "block"},
							{ID: "end", Kind: process.End},
						},
						Edges: []process.Edge{
							{From: "start", To: "work"},
							{From: "work", To: "end"},
						},
					},
					&process.Definition{
						Key: "<fast>",
						Nodes: []process.Node{
							{ID: "start", Kind: process.Start},
							{ID: "approve", Kind: process.UserTask, TaskName: "Approve"},
							{ID: "end", Kind: process.End},
						},
						Edges: []process.Edge{
							{From: "start", To: "approve"},
							{From: "approve", To: "end"},
						},
					},
				),
				WithHandlers(handlers),
				WithLogger(logger),
			)

			done := make(chan error, 1)
			go func() {
				_, err := engine.Start(ctx, "<slow>", "<bk-slow>", nil)
				done <- err
			}()

			Eventually(entered).Should(BeClosed())

			// The blocked handler must not stall this instance.
			inst, err := engine.Start(ctx, "<fast>", "<bk-fast>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(engine.CompleteTask(ctx, TaskRef{InstanceID: inst.ID(), NodeID: "approve"}, nil)).To(Succeed())
			Expect(inst.Status()).To(Equal(StatusEnded))

			close(release)
			Expect(<-done).ShouldNot(HaveOccurred())
		})
	})

	Describe("domain errors", func() {
		newEngine := func(catches []process.ErrorCatch) *Engine {
			handlers := handler.NewRegistry()
			handlers.Register("reject", func(context.Context, process.Variables) (process.Variables, error) {
				return nil, process.NewError("REJECTED", "turned down")
			})

			nodes := []process.Node{
				{ID: "start", Kind: process.Start},
				{ID: "work", Kind: process.Task, Handler: "reject"},
				{ID: "end", Kind: process.End},
			}
			edges := []process.Edge{
				{From: "start", To: "work"},
				{From: "work", To: "end"},
			}
			if catches != nil {
				nodes = append(nodes,
					process.Node{ID: "caught", Kind: process.CatchError},
					process.Node{ID: "compensated", Kind: process.End},
				)
				edges = append(edges, process.Edge{From: "caught", To: "compensated"})
			}

			return New(
				WithDefinitions(&process.Definition{
					Key:          "<def>",
					Nodes:        nodes,
					Edges:        edges,
					ErrorCatches: catches,
				}),
				WithHandlers(handlers),
				WithLogger(logger),
			)
		}

		It("routes a caught error to its compensation path", func() {
			engine := newEngine([]process.ErrorCatch{
				{Code: "REJECTED", To: "caught"},
			})

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status()).To(Equal(StatusEnded))
			Expect(inst.HasPassed("caught", "compensated")).To(BeTrue())
		})

		It("terminates the root instance on an uncaught error", func() {
			engine := newEngine(nil)

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).To(MatchError(ErrUnhandledDomainError))
			Expect(inst.Status()).To(Equal(StatusTerminated))

			f := inst.Failure()
			Expect(f).NotTo(BeNil())
			Expect(f.Code).To(Equal("REJECTED"))
		})
	})

	Describe("func Correlate()", func() {
		var engine *Engine

		BeforeEach(func() {
			engine = New(
				WithDefinitions(
					&process.Definition{
						Key: "<waiter>",
						Nodes: []process.Node{
							{ID: "start", Kind: process.Start},
							{ID: "catch", Kind: process.MessageCatch, Message: "ping"},
							{ID: "end", Kind: process.End},
						},
						Edges: []process.Edge{
							{From: "start", To: "catch"},
							{From: "catch", To: "end"},
						},
					},
					&process.Definition{
						Key: "<started>",
						Nodes: []process.Node{
							{ID: "start", Kind: process.MessageStart, Message: "kickoff"},
							{ID: "end", Kind: process.End},
						},
						Edges: []process.Edge{
							{From: "start", To: "end"},
						},
					},
				),
				WithLogger(logger),
			)
		})

		It("delivers the message to the waiting instance", func() {
			inst, err := engine.Start(ctx, "<waiter>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.WaitingAt()).To(ConsistOf("catch"))

			err = engine.Correlate(ctx, "ping", "<bk>", "", process.Variables{"pinged": true})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status()).To(Equal(StatusEnded))

			v, _ := inst.Variable("pinged")
			Expect(v).To(BeTrue())
		})

		It("does not deliver the same message twice", func() {
			_, err := engine.Start(ctx, "<waiter>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(engine.Correlate(ctx, "ping", "<bk>", "", nil)).To(Succeed())

			err = engine.Correlate(ctx, "ping", "<bk>", "", nil)
			Expect(err).To(MatchError(ErrNoMatchingCorrelation))
		})

		It("delivers nothing when the match is ambiguous", func() {
			_, err := engine.Start(ctx, "<waiter>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			_, err = engine.Start(ctx, "<waiter>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			err = engine.Correlate(ctx, "ping", "<bk>", "", nil)
			Expect(err).To(MatchError(ErrAmbiguousCorrelation))
		})

		It("starts the subscribed definition when no instance is waiting", func() {
			err := engine.Correlate(ctx, "kickoff", "<bk>", "", nil)
			Expect(err).ShouldNot(HaveOccurred())

			insts := engine.Instances("<started>")
			Expect(insts).To(HaveLen(1))
			Expect(insts[0].Status()).To(Equal(StatusEnded))
			Expect(insts[0].BusinessKey()).To(Equal("<bk>"))
		})

		It("returns an error when nothing matches the message", func() {
			err := engine.Correlate(ctx, "<nothing>", "<bk>", "", nil)
			Expect(err).To(MatchError(ErrNoMatchingCorrelation))
		})
	})

	Describe("func Broadcast()", func() {
		It("starts an instance of every subscribed definition", func() {
			def := func(key string) *process.Definition {
				return &process.Definition{
					Key: key,
					Nodes: []process.Node{
						{ID: "start", Kind: process.SignalStart, Signal: "done"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "end"},
					},
				}
			}

			engine := New(
				WithDefinitions(def("<a>"), def("<b>")),
				WithLogger(logger),
			)

			err := engine.Broadcast(ctx, "done", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(engine.Instances("<a>")).To(HaveLen(1))
			Expect(engine.Instances("<b>")).To(HaveLen(1))
		})
	})

	Describe("func ExecuteJob()", func() {
		var engine *Engine

		BeforeEach(func() {
			handlers := handler.NewRegistry()
			handlers.Register("stamp", func(context.Context, process.Variables) (process.Variables, error) {
				return process.Variables{"stamped": true}, nil
			})

			engine = New(
				WithDefinitions(
					&process.Definition{
						Key: "<async>",
						Nodes: []process.Node{
							{ID: "start", Kind: process.Start},
							{ID: "work", Kind: process.Task, Handler: "stamp", Async: true},
							{ID: "end", Kind: process.End},
						},
						Edges: []process.Edge{
							{From: "start", To: "work"},
							{From: "work", To: "end"},
						},
					},
					&process.Definition{
						Key: "<timed>",
						Nodes: []process.Node{
							{ID: "start", Kind: process.Start},
							{ID: "wait", Kind: process.Timer, Delay: time.Hour},
							{ID: "end", Kind: process.End},
						},
						Edges: []process.Edge{
							{From: "start", To: "wait"},
							{From: "wait", To: "end"},
						},
					},
				),
				WithHandlers(handlers),
				WithLogger(logger),
			)
		})

		It("fires a pending asynchronous continuation", func() {
			inst, err := engine.Start(ctx, "<async>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status()).To(Equal(StatusWaiting))
			Expect(engine.PendingJobs(inst.ID())).To(HaveLen(1))

			err = engine.ExecuteJob(ctx, inst.ID(), "work")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status()).To(Equal(StatusEnded))

			v, _ := inst.Variable("stamped")
			Expect(v).To(BeTrue())
		})

		It("fires a timer ahead of its due time", func() {
			inst, err := engine.Start(ctx, "<timed>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.WaitingAt()).To(ConsistOf("wait"))

			err = engine.ExecuteJob(ctx, inst.ID(), "wait")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status()).To(Equal(StatusEnded))
		})

		It("returns an error when the job is not pending", func() {
			inst, err := engine.Start(ctx, "<async>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(engine.ExecuteJob(ctx, inst.ID(), "work")).To(Succeed())

			err = engine.ExecuteJob(ctx, inst.ID(), "work")
			Expect(err).To(MatchError(ErrJobNotPending))
		})
	})

	Describe("func Run()", func() {
		It("fires asynchronous continuations without manual job execution", func() {
			handlers := handler.NewRegistry()
			handlers.Register("stamp", func(context.Context, process.Variables) (process.Variables, error) {
				return process.Variables{"stamped": true}, nil
			})

			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "wait", Kind: process.Timer, Delay: 10 * time.Millisecond},
						{ID: "work", Kind: process.Task, Handler: "stamp", Async: true},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "wait"},
						{From: "wait", To: "work"},
						{From: "work", To: "end"},
					},
				}),
				WithHandlers(handlers),
				WithLogger(logger),
			)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- engine.Run(runCtx)
			}()

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(inst.Status).Should(Equal(StatusEnded))

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})
	})

	Describe("func Suspend() and Resume()", func() {
		var engine *Engine

		BeforeEach(func() {
			engine = New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "end"},
					},
				}),
				WithLogger(logger),
			)
		})

		It("blocks new instances while suspended", func() {
			Expect(engine.Suspend("<def>")).To(Succeed())

			_, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).To(MatchError(ErrDefinitionSuspended))

			Expect(engine.Resume("<def>")).To(Succeed())

			_, err = engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("returns an error for an unknown definition", func() {
			Expect(engine.Suspend("<unknown>")).To(MatchError(ErrUnknownDefinition))
			Expect(engine.Resume("<unknown>")).To(MatchError(ErrUnknownDefinition))
		})

		It("refuses task completions for in-flight instances while suspended", func() {
			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "approve", Kind: process.UserTask, TaskName: "Approve"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "approve"},
						{From: "approve", To: "end"},
					},
				}),
				WithLogger(logger),
			)

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(engine.Suspend("<def>")).To(Succeed())

			err = engine.CompleteTask(ctx, TaskRef{InstanceID: inst.ID(), NodeID: "approve"}, nil)
			Expect(err).To(MatchError(ErrDefinitionSuspended))
			Expect(inst.Status()).To(Equal(StatusWaiting))

			Expect(engine.Resume("<def>")).To(Succeed())

			err = engine.CompleteTask(ctx, TaskRef{InstanceID: inst.ID(), NodeID: "approve"}, nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(inst.Status()).To(Equal(StatusEnded))
		})

		It("withdraws pending jobs while suspended and re-arms them on resume", func() {
			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "wait", Kind: process.Timer, Delay: time.Hour},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "wait"},
						{From: "wait", To: "end"},
					},
				}),
				WithLogger(logger),
			)

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(engine.PendingJobs(inst.ID())).To(HaveLen(1))

			Expect(engine.Suspend("<def>")).To(Succeed())
			Expect(engine.PendingJobs(inst.ID())).To(BeEmpty())

			err = engine.ExecuteJob(ctx, inst.ID(), "wait")
			Expect(err).To(MatchError(ErrDefinitionSuspended))
			Expect(inst.Status()).To(Equal(StatusWaiting))

			Expect(engine.Resume("<def>")).To(Succeed())
			Expect(engine.PendingJobs(inst.ID())).To(HaveLen(1))

			Expect(engine.ExecuteJob(ctx, inst.ID(), "wait")).To(Succeed())
			Expect(inst.Status()).To(Equal(StatusEnded))
		})

		It("refuses message delivery while suspended, keeping the subscription", func() {
			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "catch", Kind: process.MessageCatch, Message: "<message>"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "catch"},
						{From: "catch", To: "end"},
					},
				}),
				WithLogger(logger),
			)

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(engine.Suspend("<def>")).To(Succeed())

			err = engine.Correlate(ctx, "<message>", "<bk>", "", nil)
			Expect(err).To(MatchError(ErrDefinitionSuspended))
			Expect(inst.Status()).To(Equal(StatusWaiting))

			Expect(engine.Resume("<def>")).To(Succeed())

			Expect(engine.Correlate(ctx, "<message>", "<bk>", "", nil)).To(Succeed())
			Expect(inst.Status()).To(Equal(StatusEnded))
		})
	})

	Describe("func Terminate()", func() {
		It("stops a waiting instance", func() {
			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "approve", Kind: process.UserTask, TaskName: "Approve"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "approve"},
						{From: "approve", To: "end"},
					},
				}),
				WithLogger(logger),
			)

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(engine.Terminate(ctx, inst.ID())).To(Succeed())
			Expect(inst.Status()).To(Equal(StatusTerminated))

			err = engine.CompleteTask(ctx, TaskRef{InstanceID: inst.ID(), NodeID: "approve"}, nil)
			Expect(err).To(MatchError(ErrTaskNotWaiting))
		})

		It("returns an error for an unknown instance", func() {
			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "end"},
					},
				}),
				WithLogger(logger),
			)

			Expect(engine.Terminate(ctx, "<unknown>")).To(MatchError(ErrInstanceNotFound))
		})
	})

	Describe("instance snapshots", func() {
		It("writes a snapshot whenever the instance changes", func() {
			store := memory.NewStore()

			engine := New(
				WithDefinitions(&process.Definition{
					Key: "<def>",
					Nodes: []process.Node{
						{ID: "start", Kind: process.Start},
						{ID: "approve", Kind: process.UserTask, TaskName: "Approve"},
						{ID: "end", Kind: process.End},
					},
					Edges: []process.Edge{
						{From: "start", To: "approve"},
						{From: "approve", To: "end"},
					},
				}),
				WithInstanceStore(store),
				WithLogger(logger),
			)

			inst, err := engine.Start(ctx, "<def>", "<bk>", nil)
			Expect(err).ShouldNot(HaveOccurred())

			rec, err := store.Load(ctx, inst.ID())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(rec.Status).To(Equal("waiting"))
			Expect(rec.WaitingAt).To(ConsistOf("approve"))

			err = engine.CompleteTask(ctx, TaskRef{InstanceID: inst.ID(), NodeID: "approve"}, nil)
			Expect(err).ShouldNot(HaveOccurred())

			rec, err = store.Load(ctx, inst.ID())
			Expect(err).ShouldNot(HaveOccurred())
			Expect(rec.Status).To(Equal("ended"))
			Expect(rec.Visited).To(Equal([]string{"start", "approve", "end"}))
		})
	})
})
