package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/meridianbank/depositflow"
	. "github.com/meridianbank/depositflow/api"
	"github.com/meridianbank/depositflow/bank"
	"github.com/meridianbank/depositflow/deposit"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Handler", func() {
	var (
		engine  *depositflow.Engine
		handler *Handler
		server  *httptest.Server
	)

	BeforeEach(func() {
		repo := bank.NewStaticRepository()

		handlers := &deposit.Handlers{
			Repository: repo,
			Validator:  &bank.Validator{Repository: repo},
			Decisions:  deposit.NewTransportEvaluator(),
		}

		engine = depositflow.New(
			depositflow.WithDefinitions(deposit.Definitions(0)...),
			depositflow.WithHandlers(handlers.Registry()),
			depositflow.WithLogger(&logging.BufferedLogger{}),
		)

		handler = &Handler{
			Engine:          engine,
			Directory:       repo,
			DefaultClientID: "1",
			Logger:          &logging.BufferedLogger{},
		}

		server = httptest.NewServer(handler.Router())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("POST /bank/start/{businessKey}", func() {
		It("starts the saga for the default client", func() {
			res, err := http.Post(server.URL+"/bank/start/bk-123", "application/json", nil)
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(res)).To(Equal("Banking process with business key: bk-123 - has started"))

			insts := engine.Instances(deposit.MainProcessKey)
			Expect(insts).To(HaveLen(1))
			Expect(insts[0].BusinessKey()).To(Equal("bk-123"))
			Expect(insts[0].WaitingAt()).To(ConsistOf("GoingToBank"))
			Expect(insts[0].CorrelationID()).NotTo(BeEmpty())
		})

		It("honors the client named in the body", func() {
			res, err := http.Post(
				server.URL+"/bank/start/bk-123",
				"application/json",
				strings.NewReader(`{"clientId": "2"}`),
			)
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusOK))

			insts := engine.Instances(deposit.MainProcessKey)
			Expect(insts).To(HaveLen(1))

			v, ok := insts[0].Variable(deposit.VarClient)
			Expect(ok).To(BeTrue())
			Expect(v.(bank.Client).Name).To(Equal("Roozey"))
		})

		It("rejects a blank business key", func() {
			res, err := http.Post(server.URL+"/bank/start/%20%20", "application/json", nil)
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects a malformed body", func() {
			res, err := http.Post(
				server.URL+"/bank/start/bk-123",
				"application/json",
				strings.NewReader(`{not json`),
			)
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("reports an unknown client", func() {
			res, err := http.Post(
				server.URL+"/bank/start/bk-123",
				"application/json",
				strings.NewReader(`{"clientId": "99"}`),
			)
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("reports a suspended definition", func() {
			Expect(engine.Suspend(deposit.MainProcessKey)).To(Succeed())

			res, err := http.Post(server.URL+"/bank/start/bk-123", "application/json", nil)
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("GET /bank/instances/{instanceID}", func() {
		It("returns the instance state", func() {
			inst, err := engine.Start(
				context.Background(),
				deposit.MainProcessKey,
				"<bk>",
				nil,
			)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := http.Get(server.URL + "/bank/instances/" + inst.ID())
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusOK))

			var view struct {
				InstanceID    string   `json:"instanceId"`
				DefinitionKey string   `json:"definitionKey"`
				BusinessKey   string   `json:"businessKey"`
				Status        string   `json:"status"`
				WaitingAt     []string `json:"waitingAt"`
			}
			Expect(json.NewDecoder(res.Body).Decode(&view)).To(Succeed())
			Expect(view.InstanceID).To(Equal(inst.ID()))
			Expect(view.DefinitionKey).To(Equal(deposit.MainProcessKey))
			Expect(view.BusinessKey).To(Equal("<bk>"))
			Expect(view.Status).To(Equal("waiting"))
			Expect(view.WaitingAt).To(ConsistOf("GoingToBank"))
		})

		It("reports an unknown instance", func() {
			res, err := http.Get(server.URL + "/bank/instances/missing")
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /bank/tasks", func() {
		It("lists the waiting user tasks", func() {
			_, err := engine.Start(
				context.Background(),
				deposit.MainProcessKey,
				"<bk>",
				nil,
			)
			Expect(err).ShouldNot(HaveOccurred())

			res, err := http.Get(server.URL + "/bank/tasks")
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(res.StatusCode).To(Equal(http.StatusOK))

			var views []struct {
				NodeID string `json:"nodeId"`
				Name   string `json:"name"`
			}
			Expect(json.NewDecoder(res.Body).Decode(&views)).To(Succeed())
			Expect(views).To(HaveLen(1))
			Expect(views[0].NodeID).To(Equal("GoingToBank"))
			Expect(views[0].Name).To(Equal("Going to the bank"))
		})

		It("returns an empty list when nothing is waiting", func() {
			res, err := http.Get(server.URL + "/bank/tasks")
			Expect(err).ShouldNot(HaveOccurred())
			defer res.Body.Close()

			Expect(readBody(res)).To(Equal("[]\n"))
		})
	})
})

func readBody(res *http.Response) string {
	data, err := io.ReadAll(res.Body)
	Expect(err).ShouldNot(HaveOccurred())
	return string(data)
}
