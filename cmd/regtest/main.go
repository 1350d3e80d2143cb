// Command regtest drives a block-alert end-to-end check on a regtest node.
//
// It mines spendable coins into a throwaway wallet, sends 0.0001 BTC to the
// first receive address (m/0/0, P2WPKH) of the watched tpub and confirms
// it. A running block-alert watching that tpub should then have sent four
// notifications: setup, balance report, unconfirmed and confirmed.
package main

import (
	"net/url"
	"os"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/0xb10c/block-alert/src/bitcoinrpcclient"
	"github.com/0xb10c/block-alert/src/logging"
	"github.com/0xb10c/block-alert/src/xpub"
)

const (
	walletName     = "temp"
	matureBlocks   = 101
	sendAmountSats = 10000
)

type options struct {
	RPCURL      string        `long:"rpc-url" env:"RPC_URL" default:"http://localhost:18443" description:"Bitcoin Core RPC URL"`
	RPCUser     string        `long:"rpc-user" env:"RPC_USER" description:"Bitcoin Core RPC user"`
	RPCPassword string        `long:"rpc-password" env:"RPC_PASSWORD" description:"Bitcoin Core RPC password"`
	XPub        string        `long:"xpub" env:"XPUB" description:"tpub watched by block-alert"`
	Wait        time.Duration `long:"wait" default:"10s" description:"Time NBXplorer gets to index each step"`
}

func main() {
	_ = godotenv.Load(".env.regtest")

	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	logger, err := logging.New("info", "")
	if err != nil {
		logrus.WithError(err).Fatal("Could not set up logging")
	}
	log := logger.Service("Regtest")

	if err := run(opts, log); err != nil {
		log.WithError(err).Error("Regtest run failed")
		os.Exit(1)
	}
}

func rpcAddress(opts options) (string, error) {
	if opts.RPCUser == "" || opts.RPCPassword == "" || opts.XPub == "" {
		return "", errors.New("RPC_USER, RPC_PASSWORD and XPUB must be set (see .env.regtest)")
	}
	u, err := url.Parse(opts.RPCURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid RPC_URL")
	}
	u.User = url.UserPassword(opts.RPCUser, opts.RPCPassword)
	return u.String(), nil
}

func run(opts options, log logrus.FieldLogger) error {
	params := &chaincfg.RegressionNetParams

	address, err := rpcAddress(opts)
	if err != nil {
		return err
	}
	recipient, err := xpub.P2WPKHAddress(opts.XPub, params, 0, 0)
	if err != nil {
		return errors.Wrap(err, "could not derive receive address")
	}

	node, err := bitcoinrpcclient.NewBitcoinRPCClient(address, params, log)
	if err != nil {
		return err
	}
	defer node.Shutdown()

	log.Info("Creating wallet...")
	wallet, err := node.CreateWallet(walletName)
	if err != nil {
		return err
	}
	defer wallet.Shutdown()
	log.Infof("Wallet '%s' ready, mining to %s", walletName, wallet.MiningAddress())

	if _, err := wallet.GenerateToFixedAddress(matureBlocks); err != nil {
		return err
	}
	log.Infof("Mined %d blocks", matureBlocks)

	log.Infof("Waiting %s for NBXplorer to process incoming blocks...", opts.Wait)
	time.Sleep(opts.Wait)

	amount := btcutil.Amount(sendAmountSats)
	log.Infof("Sending %s to %s...", amount, recipient)
	txid, err := wallet.SendSimpleTransaction(recipient, amount)
	if err != nil {
		return err
	}
	log.Infof("Transaction sent. TXID: %s", txid)

	log.Infof("Waiting %s before confirming the transaction...", opts.Wait)
	time.Sleep(opts.Wait)

	if _, err := wallet.GenerateToFixedAddress(1); err != nil {
		return err
	}
	log.Info("Mined 1 block, the process has completed successfully")
	log.Infof("To delete the wallet run: bitcoin-cli unloadwallet %q && rm -rf ~/.bitcoin/regtest/wallets/%s",
		walletName, walletName)
	return nil
}
