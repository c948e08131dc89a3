// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package web_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

var _ = Describe("Account lifecycle", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness(GinkgoT())
	})

	It("registers, resets the password and logs back in", func() {
		By("registering")
		cookie := h.register(GinkgoT(), "grace@example.com", "first password")

		By("reading the auth context")
		me := h.do(http.MethodGet, "/api/auth/me", "", cookie)
		Expect(me.Code).To(Equal(http.StatusOK))
		Expect(decodeBody(GinkgoT(), me)["user"]).To(HaveKeyWithValue("email", "grace@example.com"))

		By("requesting a reset")
		Expect(h.do(http.MethodPost, "/api/auth/reset-password", `{"email":"grace@example.com"}`).Code).
			To(Equal(http.StatusOK))
		mail, found := h.outbox.Last("reset", "grace@example.com")
		Expect(found).To(BeTrue())

		By("resetting")
		reset := h.do(http.MethodPut, "/api/auth/reset-password",
			`{"token":"`+mail.Token+`","password":"second password"}`)
		Expect(reset.Code).To(Equal(http.StatusOK))

		By("losing the old session")
		Expect(h.do(http.MethodGet, "/api/auth/me", "", cookie).Code).To(Equal(http.StatusUnauthorized))

		By("rejecting the old password")
		Expect(h.do(http.MethodPost, "/api/auth/login",
			`{"email":"grace@example.com","password":"first password"}`).Code).To(Equal(http.StatusUnauthorized))

		By("logging in with the new password")
		login := h.do(http.MethodPost, "/api/auth/login",
			`{"email":"grace@example.com","password":"second password"}`)
		Expect(login.Code).To(Equal(http.StatusOK))
		fresh := sessionCookie(login)
		Expect(fresh).NotTo(BeNil())
		Expect(h.do(http.MethodGet, "/api/auth/me", "", fresh).Code).To(Equal(http.StatusOK))
	})

	It("verifies the email address from the registration mail", func() {
		cookie := h.register(GinkgoT(), "grace@example.com", "first password")
		mail, found := h.outbox.Last("verification", "grace@example.com")
		Expect(found).To(BeTrue())

		Expect(h.do(http.MethodPost, "/api/auth/verify-email", `{"token":"`+mail.Token+`"}`).Code).
			To(Equal(http.StatusOK))

		me := decodeBody(GinkgoT(), h.do(http.MethodGet, "/api/auth/me", "", cookie))
		Expect(me["user"]).To(HaveKeyWithValue("emailVerified", true))
	})

	It("keeps the owner within the free plan's site cap", func() {
		cookie := h.register(GinkgoT(), "grace@example.com", "first password")

		Expect(h.do(http.MethodPost, "/api/sites", `{"name":"Another"}`, cookie).Code).
			To(Equal(http.StatusForbidden))

		h.setPlan(GinkgoT(), "grace@example.com", "pro")
		Expect(h.do(http.MethodPost, "/api/sites", `{"name":"Another"}`, cookie).Code).
			To(Equal(http.StatusOK))
		Expect(h.sites.Len()).To(Equal(2))
	})
})
