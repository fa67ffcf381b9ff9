package transfer

import (
	"encoding/hex"
	"encoding/json"

	"github.com/gin-gonic/gin"
	uuid "github.com/kthomas/go.uuid"

	"github.com/stealthmix/transfercore/pda"
	"github.com/stealthmix/transfercore/proof"
)

// InstallAPI registers the seven entry points of spec §6.1 with gin,
// the way prover/handlers.go registers the prover registry's routes.
// This is the in-scope external interface (spec §6) -- the CLI,
// dashboard, and client SDK the original system also exposes are
// explicitly out of scope.
func InstallAPI(r *gin.Engine, m *Machine) {
	r.POST("/api/v1/transfers", initializeHandler(m))
	r.POST("/api/v1/transfers/:id/hops", executeHopHandler(m))
	r.POST("/api/v1/transfers/:id/hops/batch", executeBatchHopHandler(m))
	r.POST("/api/v1/transfers/:id/finalize", finalizeHandler(m))
	r.POST("/api/v1/transfers/:id/refund", refundHandler(m))
	r.POST("/api/v1/transfers/:id/reveal-fake", revealFakeHandler(m))
	r.PUT("/api/v1/config", configUpdateHandler(m))
	r.GET("/api/v1/version", versionHandler())
}

// versionHandler surfaces which concrete proof-system backend this
// deployment documents itself as implementing (spec.md §9's Open
// Question on proof-system identity), the way a health/version
// endpoint reports its build's concrete dependencies rather than
// leaving that identity undiscoverable.
func versionHandler() gin.HandlerFunc {
	identity := proof.DefaultBackendIdentity()
	return func(c *gin.Context) {
		render(c, 200, gin.H{
			"proof_backend": gin.H{
				"curve":  identity.Curve.String(),
				"scheme": identity.Scheme.String(),
			},
		})
	}
}

func hexAddr(s string) ([pda.Size]byte, error) {
	var out [pda.Size]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func hexChallenge(s string) (proof.Challenge, error) {
	var out proof.Challenge
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func hexAggregateProof(s string) (proof.AggregateProof, error) {
	var out proof.AggregateProof
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func hexRangeProof(s string) (proof.RangeProof, error) {
	var out proof.RangeProof
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func hexCommitments(in []string) ([CommitmentCount]proof.Commitment, error) {
	var out [CommitmentCount]proof.Commitment
	for i := 0; i < CommitmentCount && i < len(in); i++ {
		b, err := hex.DecodeString(in[i])
		if err != nil {
			return out, err
		}
		copy(out[i][:], b)
	}
	return out, nil
}

type initializeRequest struct {
	Owner                 string   `json:"owner"`
	Seed                  string   `json:"seed"`
	Amount                uint64   `json:"amount"`
	AggregateProof        string   `json:"aggregate_proof"`
	RangeProof            string   `json:"range_proof"`
	Commitments           []string `json:"commitments"`
	Challenge             string   `json:"challenge"`
	MerkleRoot            string   `json:"merkle_root"`
	PrimaryLeafPath       []string `json:"primary_leaf_path"`
	PrimaryLeafDirections []bool   `json:"primary_leaf_directions"`
	PrimaryRecipient      string   `json:"primary_recipient"`
	AdditionalRecipients  []string `json:"additional_recipients"`
	Config                Config   `json:"config"`
}

func initializeHandler(m *Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			renderError(c, err)
			return
		}
		var req initializeRequest
		if err := json.Unmarshal(buf, &req); err != nil {
			renderError(c, err)
			return
		}

		owner, err := hexAddr(req.Owner)
		if err != nil {
			renderError(c, err)
			return
		}
		seed, err := hexAddr(req.Seed)
		if err != nil {
			renderError(c, err)
			return
		}
		aggregateProof, err := hexAggregateProof(req.AggregateProof)
		if err != nil {
			renderError(c, err)
			return
		}
		rangeProof, err := hexRangeProof(req.RangeProof)
		if err != nil {
			renderError(c, err)
			return
		}
		commitments, err := hexCommitments(req.Commitments)
		if err != nil {
			renderError(c, err)
			return
		}
		challenge, err := hexChallenge(req.Challenge)
		if err != nil {
			renderError(c, err)
			return
		}
		merkleRoot, err := hexChallenge(req.MerkleRoot)
		if err != nil {
			renderError(c, err)
			return
		}
		path := make([][proof.ChallengeSize]byte, len(req.PrimaryLeafPath))
		for i, p := range req.PrimaryLeafPath {
			leaf, err := hexChallenge(p)
			if err != nil {
				renderError(c, err)
				return
			}
			path[i] = leaf
		}
		primaryRecipient, err := hexAddr(req.PrimaryRecipient)
		if err != nil {
			renderError(c, err)
			return
		}
		additional := make([][pda.Size]byte, len(req.AdditionalRecipients))
		for i, a := range req.AdditionalRecipients {
			addr, err := hexAddr(a)
			if err != nil {
				renderError(c, err)
				return
			}
			additional[i] = addr
		}

		id, err := m.Initialize(InitializeInput{
			Owner:                 owner,
			Seed:                  seed,
			Amount:                req.Amount,
			AggregateProof:        aggregateProof,
			RangeProof:            rangeProof,
			Commitments:           commitments,
			Challenge:             challenge,
			MerkleRoot:            merkleRoot,
			PrimaryLeafPath:       path,
			PrimaryLeafDirections: req.PrimaryLeafDirections,
			PrimaryRecipient:      primaryRecipient,
			AdditionalRecipients:  additional,
			Config:                req.Config,
		})
		if err != nil {
			renderError(c, err)
			return
		}

		render(c, 201, gin.H{"id": id.String()})
	}
}

func executeHopHandler(m *Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.FromString(c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}

		buf, err := c.GetRawData()
		if err != nil {
			renderError(c, err)
			return
		}
		var req struct {
			Hop            uint8    `json:"hop"`
			AggregateProof string   `json:"aggregate_proof"`
			RangeProof     string   `json:"range_proof"`
			SplitAccounts  []string `json:"split_accounts"`
		}
		if err := json.Unmarshal(buf, &req); err != nil {
			renderError(c, err)
			return
		}

		aggregateProof, err := hexAggregateProof(req.AggregateProof)
		if err != nil {
			renderError(c, err)
			return
		}
		rangeProof, err := hexRangeProof(req.RangeProof)
		if err != nil {
			renderError(c, err)
			return
		}
		accounts := make([]pda.Address, len(req.SplitAccounts))
		for i, a := range req.SplitAccounts {
			addr, err := hexAddr(a)
			if err != nil {
				renderError(c, err)
				return
			}
			accounts[i] = addr
		}

		results, err := m.ExecuteHop(id, ExecuteHopInput{
			Hop:            req.Hop,
			AggregateProof: aggregateProof,
			RangeProof:     rangeProof,
			SplitAccounts:  accounts,
		})
		if err != nil {
			renderError(c, err)
			return
		}

		render(c, 200, gin.H{"results": results})
	}
}

func executeBatchHopHandler(m *Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.FromString(c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}

		buf, err := c.GetRawData()
		if err != nil {
			renderError(c, err)
			return
		}
		var req struct {
			ComputeBudget uint32 `json:"compute_budget"`
			Hops          []struct {
				Hop            uint8    `json:"hop"`
				AggregateProof string   `json:"aggregate_proof"`
				RangeProof     string   `json:"range_proof"`
				SplitAccounts  []string `json:"split_accounts"`
			} `json:"hops"`
		}
		if err := json.Unmarshal(buf, &req); err != nil {
			renderError(c, err)
			return
		}

		batch := make([]ExecuteHopInput, len(req.Hops))
		for i, h := range req.Hops {
			aggregateProof, err := hexAggregateProof(h.AggregateProof)
			if err != nil {
				renderError(c, err)
				return
			}
			rangeProof, err := hexRangeProof(h.RangeProof)
			if err != nil {
				renderError(c, err)
				return
			}
			accounts := make([]pda.Address, len(h.SplitAccounts))
			for j, a := range h.SplitAccounts {
				addr, err := hexAddr(a)
				if err != nil {
					renderError(c, err)
					return
				}
				accounts[j] = addr
			}
			batch[i] = ExecuteHopInput{Hop: h.Hop, AggregateProof: aggregateProof, RangeProof: rangeProof, SplitAccounts: accounts}
		}

		executed, results, err := m.ExecuteBatchHop(id, batch, req.ComputeBudget)
		if err != nil {
			renderError(c, err)
			return
		}

		render(c, 200, gin.H{"hops_executed": executed, "results": results})
	}
}

func finalizeHandler(m *Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.FromString(c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}

		buf, err := c.GetRawData()
		if err != nil {
			renderError(c, err)
			return
		}
		var req struct {
			ClosingProof string `json:"closing_proof"`
			LeafProofs   []struct {
				Recipient  string   `json:"recipient"`
				Path       []string `json:"path"`
				Directions []bool   `json:"directions"`
			} `json:"leaf_proofs"`
		}
		if err := json.Unmarshal(buf, &req); err != nil {
			renderError(c, err)
			return
		}

		closingProof, err := hexAggregateProof(req.ClosingProof)
		if err != nil {
			renderError(c, err)
			return
		}

		leafProofs := make([]MerkleLeafProof, len(req.LeafProofs))
		for i, lp := range req.LeafProofs {
			recipient, err := hexAddr(lp.Recipient)
			if err != nil {
				renderError(c, err)
				return
			}
			path := make([][proof.ChallengeSize]byte, len(lp.Path))
			for j, p := range lp.Path {
				leaf, err := hexChallenge(p)
				if err != nil {
					renderError(c, err)
					return
				}
				path[j] = leaf
			}
			leafProofs[i] = MerkleLeafProof{Recipient: recipient, Path: path, Directions: lp.Directions}
		}

		payouts, err := m.Finalize(id, FinalizeInput{ClosingProof: closingProof, LeafProofs: leafProofs})
		if err != nil {
			renderError(c, err)
			return
		}

		out := make(map[string]uint64, len(payouts))
		for addr, amount := range payouts {
			out[hex.EncodeToString(addr[:])] = amount
		}
		render(c, 200, gin.H{"payouts": out})
	}
}

func refundHandler(m *Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.FromString(c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}

		amount, err := m.Refund(id)
		if err != nil {
			renderError(c, err)
			return
		}

		render(c, 200, gin.H{"refunded": amount})
	}
}

func revealFakeHandler(m *Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.FromString(c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}

		buf, err := c.GetRawData()
		if err != nil {
			renderError(c, err)
			return
		}
		var req struct {
			Hop     uint8  `json:"hop"`
			Split   uint8  `json:"split"`
			Witness string `json:"witness"`
		}
		if err := json.Unmarshal(buf, &req); err != nil {
			renderError(c, err)
			return
		}

		witness, err := hexAggregateProof(req.Witness)
		if err != nil {
			renderError(c, err)
			return
		}

		if err := m.RevealFake(id, req.Hop, req.Split, witness); err != nil {
			renderError(c, err)
			return
		}

		render(c, 200, gin.H{"repaired": true})
	}
}

func configUpdateHandler(m *Machine) gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, err := c.GetRawData()
		if err != nil {
			renderError(c, err)
			return
		}
		var req struct {
			Signer string `json:"signer"`
			Config Config `json:"config"`
		}
		if err := json.Unmarshal(buf, &req); err != nil {
			renderError(c, err)
			return
		}

		signer, err := hexAddr(req.Signer)
		if err != nil {
			renderError(c, err)
			return
		}

		if err := m.ConfigUpdate(signer, req.Config); err != nil {
			renderError(c, err)
			return
		}

		render(c, 200, gin.H{"config": req.Config})
	}
}
