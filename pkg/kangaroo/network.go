package kangaroo

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/mahdiidarabi/kangaroo/internal/netdp"
)

// serverAssumedRW stands in for the unknown total kangaroo count of the
// connected clients when the server has to pick a DP size itself.
const serverAssumedRW = 1 << 17

// netSender adapts the HTTP/3 client to the solver's DP flush path.
type netSender struct {
	c        *netdp.Client
	clientID string
}

func (n *netSender) SendDP(ctx context.Context, workerID int, hits []DpHit) error {
	batch := netdp.DPBatch{
		ClientID: n.clientID,
		WorkerID: workerID,
		Items:    make([]netdp.DPItem, len(hits)),
	}
	for i := range hits {
		batch.Items[i] = netdp.DPItem{
			X:     hits[i].X.hex(),
			D:     scalarToU256(&hits[i].D).hex(),
			KType: hits[i].KType,
		}
	}
	return n.c.SendDP(ctx, batch)
}

// fetchServerConfig pulls range, key, DP size and symmetry from the
// aggregation server before the client starts walking.
func (s *Solver) fetchServerConfig(ctx context.Context) error {
	c := netdp.NewClient(s.serverAddr)
	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("%w: cannot fetch config from %s: %v", ErrResource, s.serverAddr, err)
	}

	if s.rangeStart, err = u256FromHex(cfg.RangeStart); err != nil {
		return err
	}
	if s.rangeEnd, err = u256FromHex(cfg.RangeEnd); err != nil {
		return err
	}
	s.rangeStartHex = cfg.RangeStart
	s.rangeEndHex = cfg.RangeEnd

	pub, err := parsePubKeyHex(cfg.PubKey)
	if err != nil {
		return err
	}
	s.keys = append(s.keys[:0], pub)
	s.initDPBits = cfg.DPBits
	s.symmetry = cfg.Symmetry

	hostname, _ := os.Hostname()
	s.sender = &netSender{
		c:        c,
		clientID: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	}
	fmt.Printf("Server config: range [%s, %s) dp %d\n", cfg.RangeStart, cfg.RangeEnd, cfg.DPBits)
	return nil
}

// RunServer aggregates distinguished points from remote clients into the
// one authoritative table and resolves collisions as they arrive. It
// returns when the key is solved or ctx ends.
func (s *Solver) RunServer(ctx context.Context, addr string) error {
	if err := s.parseInputs(); err != nil {
		return err
	}

	s.table = NewHashTable()
	s.initRange()
	s.totalRW = serverAssumedRW
	if s.initDPBits < 0 {
		s.initDPBits = s.suggestDP()
	}
	s.expectedNbOp, s.expectedMem, _ = s.computeExpected(float64(s.initDPBits))
	s.setDP(s.initDPBits)
	s.keyIdx = 0
	s.initSearchKey()
	s.endOfSearch.Store(false)

	cfg := netdp.ConfigMsg{
		RangeStart: s.rangeStart.hex(),
		RangeEnd:   s.rangeEnd.hex(),
		PubKey:     s.targetKeyHex(),
		DPBits:     s.dpBits,
		Symmetry:   s.symmetry,
	}
	srv := netdp.NewServer(cfg, s.submitBatch)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(serveCtx, addr, "server.crt", "server.key")
	}()
	go s.scanGaps(serveCtx)

	startTime := time.Now()
	lastSave := time.Now()
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for !s.endOfSearch.Load() {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("%w: %v", ErrResource, err)
			}
			return nil
		case <-ticker.C:
		}

		s.printServerStatus(srv, startTime)

		if s.workFile != "" && !s.endOfSearch.Load() {
			if time.Since(lastSave) > s.savePeriod {
				s.saveServerWork(time.Since(startTime).Seconds())
				lastSave = time.Now()
			}
		}
	}
	return nil
}

// submitBatch is the server's ingestion callback.
func (s *Solver) submitBatch(batch netdp.DPBatch) error {
	for _, item := range batch.Items {
		x, err := u256FromHex(item.X)
		if err != nil {
			return err
		}
		du, err := u256FromHex(item.D)
		if err != nil {
			return err
		}
		d := du.toScalar()
		s.submitDP(x, &d, item.KType&1)
		if s.endOfSearch.Load() {
			break
		}
	}
	return nil
}

func (s *Solver) printServerStatus(srv *netdp.Server, startTime time.Time) {
	tw := 0.0
	if w := s.wildCount.Load(); w > 0 {
		tw = float64(s.tameCount.Load()) / float64(w)
	}
	s.gapMu.Lock()
	curGap := gapToFloat(s.lastGap)
	lowGap := gapToFloat(s.lowestGap)
	if !s.gapSeen {
		curGap, lowGap = 0, 0
	}
	s.gapMu.Unlock()

	s.ghMu.Lock()
	nbDP := s.table.NbItem()
	sizeInfo := s.table.sizeInfo()
	s.ghMu.Unlock()

	fmt.Printf("\r[Client %d][DP Count 2^%.2f/2^%.2f][Dead %d][T/W:%.3f][Gap:%.1f][L.Gap:%.1f][%s][%s]  ",
		srv.ConnectedClients(),
		log2u(nbDP),
		math.Log2(s.expectedNbOp/math.Pow(2.0, float64(s.dpBits))),
		s.deadKang.Load(),
		tw, curGap, lowGap,
		formatDuration(time.Since(startTime).Seconds()),
		sizeInfo)
}

// saveServerWork writes the server table synchronously; in split mode the
// file is rotated and the table reset, so each piece holds a disjoint DP
// set.
func (s *Solver) saveServerWork(elapsed float64) {
	fileName := s.workFile
	if s.splitWorkfile {
		fileName = fmt.Sprintf("%s_%s", s.workFile, time.Now().Format("20060102_150405"))
	}

	snap := s.newSnapshot(s.offsetCount, elapsed+s.offsetTime)
	s.ghMu.Lock()
	s.snapshotTable(snap)
	if s.splitWorkfile {
		s.table.Reset()
	}
	s.ghMu.Unlock()

	t0 := time.Now()
	fmt.Printf("\nSaveWork: %s", fileName)
	size, err := writeWorkFile(fileName, snap)
	if err != nil {
		fmt.Printf("\nSaveWork: %v\n", err)
		return
	}
	fmt.Printf("done [%.1f MB] [%s] %s",
		float64(size)/(1024.0*1024.0),
		formatDuration(time.Since(t0).Seconds()),
		time.Now().Format(time.ANSIC)+"\n")
}
