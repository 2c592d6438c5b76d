// hostctl is the host-side CLI collaborator for signerd (spec.md §6 "Host
// CLI surface"): it dials the device, drives Init/PubKey/Sign/Verify over
// the framed wire protocol, and prints the result. It is out-of-core
// tooling, not part of the embedded signing surface itself.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cardano-embedded/signer/internal/codec"
)

const readTimeout = 100 * time.Second // spec.md §5 "the host side uses a long serial read timeout"

func main() {
	mnemonics := flag.String("mnemonics", "", "BIP-39 recovery phrase to load into the device session")
	password := flag.String("password", "", "BIP-39 passphrase")
	derivationPath := flag.String("derivation-path", "m/1852'/1815'/0'/0/0", "CIP-1852 derivation path")
	scriptAddress := flag.String("script-address", "", "script address whose hash becomes the signed tx id in submit mode")
	network := flag.String("network", "preprod", "mainnet|preprod")
	nodeSocket := flag.String("node-socket", "", "path to the Cardano node socket (collaborator contract; unused by this simulator)")
	devicePort := flag.String("device-port", "127.0.0.1:4761", "signerd TCP address")
	mode := flag.String("mode", "submit", "submit|verify")
	flag.Parse()

	_ = network
	_ = nodeSocket

	if *mnemonics == "" {
		fmt.Fprintln(os.Stderr, "hostctl: --mnemonics is required")
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *devicePort)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hostctl: dial %s: %v\n", *devicePort, err)
		os.Exit(1)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(readTimeout))

	if err := roundTrip(conn, &codec.Request{
		Tag:  codec.TagInit,
		Init: &codec.InitRequest{Mnemonic: *mnemonics},
	}, codec.TagInitOK); err != nil {
		fail("Init", err)
	}

	switch *mode {
	case "submit":
		if err := runSubmit(conn, *password, *derivationPath, *scriptAddress); err != nil {
			fail("submit", err)
		}
	case "verify":
		if err := runVerify(conn, *password, *derivationPath); err != nil {
			fail("verify", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "hostctl: unknown --mode %q\n", *mode)
		os.Exit(1)
	}
}

// runSubmit fetches the public key inside an errgroup built on a
// timeout-bound context, then signs the SHA-256 hash of --script-address.
// The two requests run one after the other over the same connection; the
// group's context is not passed to them, so the connection deadline set in
// main is what bounds each round trip.
func runSubmit(conn net.Conn, password, path, scriptAddress string) error {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	g, _ := errgroup.WithContext(ctx)

	var pubKeyHex string
	g.Go(func() error {
		resp, err := request(conn, &codec.Request{
			Tag:    codec.TagPubKey,
			PubKey: &codec.PubKeyRequest{Password: []byte(password), Path: path},
		})
		if err != nil {
			return err
		}
		if resp.Tag != codec.TagPubKeyOut {
			return responseError(resp)
		}
		pubKeyHex = resp.PubKey.Hex
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Printf("public key: %s\n", pubKeyHex)

	sum := sha256.Sum256([]byte(scriptAddress))
	resp, err := request(conn, &codec.Request{
		Tag: codec.TagSign,
		Sign: &codec.SignRequest{
			TxID:     sum[:],
			Password: []byte(password),
			Path:     path,
		},
	})
	if err != nil {
		return err
	}
	if resp.Tag != codec.TagSignOut {
		return responseError(resp)
	}
	fmt.Printf("tx id: %s\nsignature: %s\n", hex.EncodeToString(sum[:]), hex.EncodeToString(resp.Sign.Signature))
	return nil
}

func runVerify(conn net.Conn, password, path string) error {
	sum := sha256.Sum256([]byte(path))
	signResp, err := request(conn, &codec.Request{
		Tag:  codec.TagSign,
		Sign: &codec.SignRequest{TxID: sum[:], Password: []byte(password), Path: path},
	})
	if err != nil {
		return err
	}
	if signResp.Tag != codec.TagSignOut {
		return responseError(signResp)
	}

	verifyResp, err := request(conn, &codec.Request{
		Tag: codec.TagVerify,
		Verify: &codec.VerifyRequest{
			TxID:      sum[:],
			Signature: signResp.Sign.Signature,
			Password:  []byte(password),
			Path:      path,
		},
	})
	if err != nil {
		return err
	}
	if verifyResp.Tag != codec.TagVerifyOut {
		return responseError(verifyResp)
	}
	fmt.Printf("verify: %v\n", verifyResp.Verify.OK)
	return nil
}

func roundTrip(conn net.Conn, req *codec.Request, wantTag codec.ResponseTag) error {
	resp, err := request(conn, req)
	if err != nil {
		return err
	}
	if resp.Tag != wantTag {
		return responseError(resp)
	}
	return nil
}

func request(conn net.Conn, req *codec.Request) (*codec.Response, error) {
	body, err := codec.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if err := codec.WriteFrame(conn, body); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	respBody, err := codec.ReadFrame(conn, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return codec.DecodeResponse(respBody)
}

func responseError(resp *codec.Response) error {
	if resp.Tag == codec.TagError {
		return fmt.Errorf("device error: %s", resp.Error.Message)
	}
	return fmt.Errorf("unexpected response tag %d", resp.Tag)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "hostctl: %s: %v\n", step, err)
	os.Exit(1)
}
