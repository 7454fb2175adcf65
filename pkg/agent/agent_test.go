package agent_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/warren/pkg/agent"
	"github.com/papercomputeco/warren/pkg/agent/recorder"
	"github.com/papercomputeco/warren/pkg/llm"
	ltminmemory "github.com/papercomputeco/warren/pkg/longterm/inmemory"
	"github.com/papercomputeco/warren/pkg/memory"
	"github.com/papercomputeco/warren/pkg/shortterm"
	stminmemory "github.com/papercomputeco/warren/pkg/shortterm/inmemory"
	"github.com/papercomputeco/warren/pkg/tools"
)

func TestAgent(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Agent Suite")
}

type stubProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (p *stubProvider) Name() string {
	return "stub"
}

func (p *stubProvider) Chat(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *stubProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

func (p *stubProvider) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (stubEmbedder) Close() error {
	return nil
}

var _ = Describe("Agent server", func() {
	var (
		prov   *stubProvider
		stm    *stminmemory.Driver
		ltm    *ltminmemory.Driver
		mgr    *memory.Manager
		pool   *recorder.Pool
		server *agent.Server
	)

	BeforeEach(func() {
		prov = &stubProvider{reply: "hello there"}
		stm = stminmemory.NewDriver()
		ltm = ltminmemory.NewDriver()
		mgr = memory.NewManager(stm, ltm, stubEmbedder{}, memory.Config{Window: 6}, zap.NewNop())

		var err error
		pool, err = recorder.NewPool(&recorder.Config{
			Manager: mgr,
			Logger:  zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		registry := tools.NewRegistry(tools.NewCalculator())
		server = agent.NewServer(agent.Config{}, prov, mgr, registry, pool, zap.NewNop())
	})

	AfterEach(func() {
		pool.Close()
	})

	post := func(path, body string) *http.Response {
		req, err := http.NewRequest("POST", path, bytes.NewBufferString(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")

		resp, err := server.App().Test(req, 10000)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, out any) {
		defer resp.Body.Close()
		Expect(json.NewDecoder(resp.Body).Decode(out)).To(Succeed())
	}

	windowLen := func(key string) int {
		turns, err := stm.Load(context.Background(), key)
		Expect(err).NotTo(HaveOccurred())
		return len(turns)
	}

	Describe("health", func() {
		It("reports readiness", func() {
			req, err := http.NewRequest("GET", "/health", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.App().Test(req, 10000)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]any
			decode(resp, &body)
			Expect(body["status"]).To(Equal("ok"))
			Expect(body["agent_ready"]).To(Equal(true))
		})
	})

	Describe("/chat", func() {
		It("answers through the model without touching memory", func() {
			resp := post("/chat", `{"message":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]any
			decode(resp, &body)
			Expect(body["result"]).To(Equal("hello there"))

			Consistently(func() int {
				return windowLen("_")
			}, "100ms").Should(BeZero())
		})

		It("separates reasoning from the answer", func() {
			prov.reply = "<reasoning>thinking hard</reasoning>the answer"

			var body map[string]any
			decode(post("/chat", `{"message":"hi"}`), &body)
			Expect(body["result"]).To(Equal("the answer"))
			Expect(body["reasoning"]).To(Equal("thinking hard"))
		})

		It("rejects an empty message", func() {
			resp := post("/chat", `{"message":"  "}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns a structured error when the model fails", func() {
			prov.err = fmt.Errorf("upstream on fire")

			resp := post("/chat", `{"message":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			var body llm.ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(Equal("model call failed"))
			Expect(body.Trace).To(ContainSubstring("upstream on fire"))
		})
	})

	Describe("/agent", func() {
		It("requires user_id and session_id", func() {
			resp := post("/agent?user_id=alice", `{"message":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			resp = post("/agent?session_id=s1", `{"message":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("answers and records the exchange asynchronously", func() {
			resp := post("/agent?user_id=alice&session_id=s1", `{"message":"what is warren?"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]any
			decode(resp, &body)
			Expect(body["result"]).To(Equal("hello there"))
			Expect(body["user_id"]).To(Equal("alice"))
			Expect(body["session_id"]).To(Equal("s1"))
			Expect(body["thread_id"]).To(Equal("alice_s1"))

			Eventually(func() int {
				return windowLen("alice_s1")
			}).Should(Equal(2))

			turns, err := stm.Load(context.Background(), "alice_s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns[0].Role).To(Equal(shortterm.RoleHuman))
			Expect(turns[0].Text).To(Equal("what is warren?"))
			Expect(turns[1].Role).To(Equal(shortterm.RoleAssistant))
			Expect(turns[1].Text).To(Equal("hello there"))
		})

		It("prefixes the prompt with retrieved context", func() {
			Expect(mgr.RecordExchange(context.Background(),
				memory.Thread{UserID: "alice", SessionID: "s1"},
				"remember the door code", "noted, it is 4421",
				memory.Options{},
			)).To(Succeed())

			post("/agent?user_id=alice&session_id=s1", `{"message":"what was the code?"}`)

			prompt := prov.lastPrompt()
			Expect(prompt).To(ContainSubstring("Recent conversation:"))
			Expect(prompt).To(ContainSubstring("remember the door code"))
			Expect(prompt).To(ContainSubstring("Human: what was the code?"))
		})

		It("dispatches slash commands to tools without calling the model", func() {
			resp := post("/agent?user_id=alice&session_id=s1", `{"message":"/calc 2+3"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body map[string]any
			decode(resp, &body)
			Expect(body["result"]).To(Equal("5"))
			Expect(prov.calls()).To(BeZero())

			Eventually(func() int {
				return windowLen("alice_s1")
			}).Should(Equal(2))
		})

		It("errors on unknown slash commands", func() {
			resp := post("/agent?user_id=alice&session_id=s1", `{"message":"/teleport home"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			var body llm.ErrorResponse
			decode(resp, &body)
			Expect(body.Trace).To(ContainSubstring("unknown tool"))
		})

		It("records nothing when the model fails", func() {
			prov.err = fmt.Errorf("provider down")

			resp := post("/agent?user_id=alice&session_id=s1", `{"message":"hi"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))

			Consistently(func() int {
				return windowLen("alice_s1")
			}, "200ms").Should(BeZero())
		})

		It("fans a shared exchange out to recipients", func() {
			post("/agent?user_id=alice&session_id=s1",
				`{"message":"deploy friday","share":true,"shared_with":["bob"]}`)

			Eventually(func() []string {
				var owners []string
				for _, rec := range ltm.Records() {
					owners = append(owners, rec.Owner)
				}
				return owners
			}).Should(ContainElements("alice", "bob"))
		})
	})
})
